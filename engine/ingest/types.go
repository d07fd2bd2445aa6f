package ingest

import (
	"github.com/inceptlabs/inception-engine/engine/domain"
	"github.com/inceptlabs/inception-engine/engine/semantic"
)

// Upload is the unit of work entering the ingestion pipeline: a raw file
// plus its target document id. Content travels base64-encoded over NATS.
type Upload struct {
	DocID    string `json:"doc_id"`
	Filename string `json:"filename"`
	Content  []byte `json:"content"`
	Replace  bool   `json:"replace,omitempty"`
}

// Extracted is an upload with its page text pulled out.
type Extracted struct {
	Upload
	Doc domain.Document
}

// Chunked is an extracted document registered in the store and split into
// passages. For a replacement, Previous holds the version that was swapped
// out so a failure later in the pipeline can put it back, and PreviousIDs
// are its passage ids, used to prune vectors the new version no longer has.
type Chunked struct {
	Extracted
	Passages    []domain.Passage
	Previous    *domain.Document
	PreviousIDs []string
}

// Embedded is a chunked document with index records ready to upsert.
type Embedded struct {
	Chunked
	Records []semantic.Record
}
