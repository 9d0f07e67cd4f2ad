package mirror

import (
	"fmt"

	"github.com/ipaynter-umb/MCD43GF-production/pkg/errors"
	"github.com/ipaynter-umb/MCD43GF-production/pkg/fsutil"
)

// ProductInfo is the on-disk footprint of one product.
type ProductInfo struct {
	Product string
	Files   int
	Size    int64
}

// Info summarises the mirror and link trees.
type Info struct {
	MirrorRoot string
	LinkRoot   string
	Products   []ProductInfo
	TotalSize  int64
	TotalFiles int
	Links      int
}

// GetInfo measures the given products and counts the links under the link root.
func GetInfo(layout Layout, products []string) (*Info, error) {
	info := &Info{MirrorRoot: layout.MirrorRoot, LinkRoot: layout.LinkRoot}
	for _, p := range products {
		size, files, _, err := fsutil.DirSizeAndFiles(layout.ProductDir(p))
		if err != nil {
			return nil, errors.Wrapf(err, "failed to get mirror info for %s", p)
		}
		info.Products = append(info.Products, ProductInfo{Product: p, Files: files, Size: size})
		info.TotalSize += size
		info.TotalFiles += files
	}

	_, _, links, err := fsutil.DirSizeAndFiles(layout.LinkRoot)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to count links under %s", layout.LinkRoot)
	}
	info.Links = links
	return info, nil
}

// FormatBytes converts bytes to a human-readable string.
func FormatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}

	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}

	units := []string{"K", "M", "G", "T", "P", "E"}
	if exp < len(units) {
		return fmt.Sprintf("%.1f %sB", float64(bytes)/float64(div), units[exp])
	}
	return fmt.Sprintf("%d B", bytes)
}
