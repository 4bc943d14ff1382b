package helpers

import (
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
)

// EncodeBSON marshals a document (struct, bson.D or map) into raw BSON.
func EncodeBSON(document interface{}) ([]byte, error) {
	bsonData, err := bson.Marshal(document)
	if err != nil {
		return nil, fmt.Errorf("error encoding BSON: %w", err)
	}
	return bsonData, nil
}

// DecodeBSON unmarshals raw BSON into an ordered document.
func DecodeBSON(bsonData []byte) (bson.D, error) {
	var decoded bson.D
	if err := bson.Unmarshal(bsonData, &decoded); err != nil {
		return nil, fmt.Errorf("error decoding BSON: %w", err)
	}
	return decoded, nil
}

// Transcode converts one BSON-compatible value into another, e.g. a bson.M
// row into a typed struct.
func Transcode(from interface{}, to interface{}) error {
	data, err := EncodeBSON(from)
	if err != nil {
		return err
	}
	if err := bson.Unmarshal(data, to); err != nil {
		return fmt.Errorf("error decoding BSON into %T: %w", to, err)
	}
	return nil
}
