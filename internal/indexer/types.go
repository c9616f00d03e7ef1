package indexer

// RequestSource identifies which worker enqueued a fetch request.
type RequestSource string

const (
	SourceFetcher RequestSource = "fetcher"
	SourceCatchup RequestSource = "catchup"
)

// FetchRequest asks the processor to turn one slot into a stored block.
type FetchRequest struct {
	Slot   uint64
	Source RequestSource
}
