package himawari

import (
	"fmt"
	"strings"
	"time"

	"himawari-desktop/internal/common"
)

// TileURL builds the address of one tile:
// {base}/{level}d/{tileWidth}/{YYYY/MM/DD/HHMMSS}_{x}_{y}.png
func TileURL(base string, spec common.GridSpec, ts time.Time, coord common.TileCoordinate) string {
	return fmt.Sprintf("%s/%dd/%d/%s_%d_%d.png",
		strings.TrimRight(base, "/"),
		spec.Level,
		spec.TileWidth,
		common.FormatURL(ts),
		coord.X,
		coord.Y,
	)
}
