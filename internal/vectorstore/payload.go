package vectorstore

import (
	qdrant "github.com/qdrant/go-client/qdrant"

	"github.com/medlit-tools/semsearch/internal/models"
)

func encodePayload(p models.ChunkPayload) map[string]*qdrant.Value {
	payload := map[string]*qdrant.Value{
		fieldText:       stringValue(p.Text),
		fieldTitle:      stringValue(p.Title),
		fieldSource:     stringValue(p.Source),
		fieldChunkIndex: intValue(int64(p.ChunkIndex)),
		fieldChunkCount: intValue(int64(p.ChunkCount)),
		fieldIngestedAt: intValue(p.IngestedAt),
	}
	if p.DOI != "" {
		payload[fieldDOI] = stringValue(p.DOI)
	}
	if p.Year != 0 {
		payload[fieldYear] = intValue(int64(p.Year))
	}
	if p.Journal != "" {
		payload[fieldJournal] = stringValue(p.Journal)
	}
	return payload
}

func decodePayload(raw map[string]*qdrant.Value) models.ChunkPayload {
	return models.ChunkPayload{
		Text:       raw[fieldText].GetStringValue(),
		Title:      raw[fieldTitle].GetStringValue(),
		DOI:        raw[fieldDOI].GetStringValue(),
		Year:       int(raw[fieldYear].GetIntegerValue()),
		Journal:    raw[fieldJournal].GetStringValue(),
		Source:     raw[fieldSource].GetStringValue(),
		ChunkIndex: int(raw[fieldChunkIndex].GetIntegerValue()),
		ChunkCount: int(raw[fieldChunkCount].GetIntegerValue()),
		IngestedAt: raw[fieldIngestedAt].GetIntegerValue(),
	}
}

func stringValue(s string) *qdrant.Value {
	return &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: s}}
}

func intValue(n int64) *qdrant.Value {
	return &qdrant.Value{Kind: &qdrant.Value_IntegerValue{IntegerValue: n}}
}
