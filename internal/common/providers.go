package common

// Remote endpoint defaults for the Himawari-8/9 full-disk imagery service
const (
	// DefaultMetadataURL returns a JSON document describing the latest snapshot
	DefaultMetadataURL = "https://himawari8-dl.nict.go.jp/himawari8/img/D531106/latest.json"

	// DefaultTileBaseURL is the prefix every tile address is built on
	DefaultTileBaseURL = "https://himawari8.nict.go.jp/img/D531106"

	// ProviderHimawari is the identifier used in logs and telemetry
	ProviderHimawari = "himawari"

	// DisplayNameHimawari is the human-readable provider name
	DisplayNameHimawari = "Himawari"
)
