package domain

// DataSource names one stream adapter. Each symbol maps to a fixed,
// asset-class-derived subset of sources; the orchestrator opens exactly one
// connection per applicable source.
type DataSource string

const (
	SourceBinance    DataSource = "binance"
	SourceBybit      DataSource = "bybit"
	SourceCoinbase   DataSource = "coinbase"
	SourceOKX        DataSource = "okx"
	SourcePyth       DataSource = "pyth"
	SourceLazer      DataSource = "lazer"
	SourceFinnhub    DataSource = "finnhub"
	SourceTiingo     DataSource = "tiingo"
	SourceHistorical DataSource = "historical"
)

// AllSources lists every adapter in the catalogue, in a stable order.
var AllSources = []DataSource{
	SourceBinance,
	SourceBybit,
	SourceCoinbase,
	SourceOKX,
	SourcePyth,
	SourceLazer,
	SourceFinnhub,
	SourceTiingo,
	SourceHistorical,
}

var knownSources = func() map[DataSource]bool {
	m := make(map[DataSource]bool, len(AllSources))
	for _, s := range AllSources {
		m[s] = true
	}
	return m
}()

// KnownSource reports whether s names a catalogued adapter.
func KnownSource(s DataSource) bool {
	return knownSources[s]
}

// Subscription is the ephemeral record of one (source, symbol) connection
// decision. It is created when the orchestrator decides a source is
// relevant to the current symbol and destroyed when the symbol changes or
// becomes irrelevant to that source; it is never persisted.
type Subscription struct {
	Source  DataSource
	Symbol  Symbol
	Enabled bool
}

// SourcesFor returns the data sources applicable to the given symbol. Crypto
// symbols stream from the exchange set plus both oracle feeds; FX adds the
// forex providers to the oracle; equities and futures are oracle-only;
// replay symbols use the synthetic historical source.
func SourcesFor(s Symbol) []DataSource {
	switch ClassOf(s) {
	case AssetClassCrypto:
		return []DataSource{
			SourceBinance, SourceBybit, SourceCoinbase, SourceOKX,
			SourcePyth, SourceLazer,
		}
	case AssetClassFX:
		return []DataSource{SourcePyth, SourceFinnhub, SourceTiingo}
	case AssetClassEquity, AssetClassFuture:
		return []DataSource{SourcePyth}
	case AssetClassReplay:
		return []DataSource{SourceHistorical}
	default:
		return nil
	}
}
