package db

import (
	"fmt"

	"github.com/go-viper/mapstructure/v2"
)

// DecodeDocument copies doc.Data into out, matching `firestore` struct tags.
// The id is not copied; callers assign it.
func DecodeDocument(doc Document, out interface{}) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName: "firestore",
		Result:  out,
	})
	if err != nil {
		return fmt.Errorf("build decoder: %w", err)
	}
	if err := decoder.Decode(doc.Data); err != nil {
		return fmt.Errorf("decode document %s: %w", doc.ID, err)
	}
	return nil
}
