package catalog

import (
	"bytes"
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/thomas-mindruptive/pure-svelte-sub003/query"
)

//go:embed queries.yaml
var queriesYAML []byte

type queryFile struct {
	Queries []query.NamedQuery `yaml:"queries"`
}

// NamedQueries parses the embedded predefined query definitions.
func NamedQueries() ([]query.NamedQuery, error) {
	return parseNamedQueries(queriesYAML)
}

func parseNamedQueries(data []byte) ([]query.NamedQuery, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var f queryFile
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("parse predefined queries: %w", err)
	}
	return f.Queries, nil
}

// NewQueryConfig builds the immutable compiler configuration for the catalog.
func NewQueryConfig(dialect query.Dialect, limits query.Limits) (*query.Config, error) {
	named, err := NamedQueries()
	if err != nil {
		return nil, err
	}
	return query.NewConfig(dialect, limits, Entities(), named)
}
