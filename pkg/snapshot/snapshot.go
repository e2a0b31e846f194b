// Package snapshot defines the wire format of an assignment request, shared
// by the HTTP API, the offline CLI and scenario files.
package snapshot

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/courier-dispatch/core/model"
)

// Order is an order on the wire. CookID names its pickup site.
type Order struct {
	ID     string `json:"id" yaml:"id"`
	CookID string `json:"cookId" yaml:"cookId"`
}

// Location is a courier or pickup site on the wire.
type Location struct {
	ID  string  `json:"id" yaml:"id"`
	Lat float64 `json:"lat" yaml:"lat"`
	Lng float64 `json:"lng" yaml:"lng"`
}

// Document is the body of an assignment request.
type Document struct {
	Orders       []Order            `json:"orders" yaml:"orders"`
	Drivers      []Location         `json:"drivers" yaml:"drivers"`
	Cooks        []Location         `json:"cooks" yaml:"cooks"`
	DriverScores map[string]float64 `json:"driverScores" yaml:"driverScores"`
}

// ToModel converts the document into an engine snapshot, keeping input order.
func (d Document) ToModel() model.Snapshot {
	snap := model.Snapshot{
		Orders:      make([]model.Order, len(d.Orders)),
		Couriers:    make([]model.Courier, len(d.Drivers)),
		PickupSites: make([]model.PickupSite, len(d.Cooks)),
		Reliability: model.ReliabilityTable(d.DriverScores),
	}
	for i, o := range d.Orders {
		snap.Orders[i] = model.Order{ID: o.ID, PickupSiteID: o.CookID}
	}
	for i, c := range d.Drivers {
		snap.Couriers[i] = model.Courier{ID: c.ID, GeoPoint: model.GeoPoint{Lat: c.Lat, Lng: c.Lng}}
	}
	for i, c := range d.Cooks {
		snap.PickupSites[i] = model.PickupSite{ID: c.ID, GeoPoint: model.GeoPoint{Lat: c.Lat, Lng: c.Lng}}
	}
	return snap
}

// Format identifies a document encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFromPath picks the format from the file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unsupported snapshot format: %s", filepath.Ext(path))
	}
}

// Parse decodes data in the given format. Unknown fields are rejected so
// typos in hand-written files surface early.
func Parse(data []byte, format Format) (Document, error) {
	var doc Document
	switch format {
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&doc); err != nil {
			return Document{}, fmt.Errorf("decode json snapshot: %w", err)
		}
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&doc); err != nil {
			return Document{}, fmt.Errorf("decode yaml snapshot: %w", err)
		}
	default:
		return Document{}, fmt.Errorf("unsupported snapshot format: %s", format)
	}
	return doc, nil
}

// Load reads a snapshot file, choosing the decoder from its extension.
func Load(path string) (Document, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return Document{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, fmt.Errorf("read snapshot: %w", err)
	}
	return Parse(data, format)
}
