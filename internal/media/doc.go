// Package media holds the image model and the stateless pieces of image
// acquisition: format sniffing, decoding, thumbnail generation and directory
// scanning.
//
// Decoders are registered per [Format]. JPEG (with EXIF orientation applied),
// PNG, GIF, WebP, BMP and TIFF are built in; HEIF, AVIF and JPEG XL become
// available when the vips subpackage is initialized.
//
// [Decode] trusts content over the file extension: the hinted format is tried
// first and the sniffed format second. Failures are reported through the
// sentinel errors in errors.go, and [KindOf] maps any error to a stable
// [ErrorKind] for the front end.
package media
