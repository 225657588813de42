package processor

import (
	"path"
	"strings"
)

// Format is an output encoding selected from a blob name extension.
type Format int

const (
	FormatUnsupported Format = iota
	FormatBMP
	FormatGIF
	FormatICO
	FormatJPEG
	FormatPNG
	FormatTIFF
	// FormatMetafile covers .wmf/.emf targets. There is no metafile encoder,
	// so the raster is written as PNG.
	FormatMetafile
)

var formatsByExt = map[string]Format{
	".bmp":  FormatBMP,
	".gif":  FormatGIF,
	".ico":  FormatICO,
	".jpg":  FormatJPEG,
	".jpeg": FormatJPEG,
	".png":  FormatPNG,
	".tif":  FormatTIFF,
	".tiff": FormatTIFF,
	".wmf":  FormatMetafile,
	".emf":  FormatMetafile,
}

var formatNames = map[Format]string{
	FormatUnsupported: "unsupported",
	FormatBMP:         "bmp",
	FormatGIF:         "gif",
	FormatICO:         "ico",
	FormatJPEG:        "jpeg",
	FormatPNG:         "png",
	FormatTIFF:        "tiff",
	FormatMetafile:    "metafile",
}

var contentTypes = map[Format]string{
	FormatBMP:      "image/bmp",
	FormatGIF:      "image/gif",
	FormatICO:      "image/x-icon",
	FormatJPEG:     "image/jpeg",
	FormatPNG:      "image/png",
	FormatTIFF:     "image/tiff",
	FormatMetafile: "image/png",
}

// FormatFromExtension maps an extension such as ".JPG" or "png" to a Format.
func FormatFromExtension(ext string) Format {
	ext = strings.ToLower(ext)
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	if f, ok := formatsByExt[ext]; ok {
		return f
	}
	return FormatUnsupported
}

func FormatFromName(name string) Format {
	return FormatFromExtension(path.Ext(name))
}

func (f Format) Supported() bool {
	return f != FormatUnsupported
}

// ContentType is the MIME type of the bytes Encode writes for f.
func (f Format) ContentType() string {
	if ct, ok := contentTypes[f]; ok {
		return ct
	}
	return "application/octet-stream"
}

func (f Format) String() string {
	if name, ok := formatNames[f]; ok {
		return name
	}
	return formatNames[FormatUnsupported]
}
