package common

// TileDownloadResult represents the outcome of fetching and decoding one tile
type TileDownloadResult struct {
	// Coord is the grid position the result belongs to
	Coord TileCoordinate

	// Bytes is the size of the encoded tile payload
	Bytes int

	// Err is nil on success
	Err error
}

// Success reports whether the tile was fetched and decoded
func (r TileDownloadResult) Success() bool {
	return r.Err == nil
}
