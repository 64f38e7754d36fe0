package export

import (
	"fmt"
	"io"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	kml "github.com/twpayne/go-kml/v3"
)

// Placemark name preference, checked in order against feature properties.
var nameKeys = []string{"Site_ID", "cellname", "site_id"}

// WriteKML renders point features as a KML document of placemarks. Features
// without point geometry are skipped.
func WriteKML(w io.Writer, docName string, features []*geojson.Feature) error {
	placemarks := make([]kml.Element, 0, len(features)+1)
	placemarks = append(placemarks, kml.Name(docName))

	for _, f := range features {
		pt, ok := f.Geometry.(orb.Point)
		if !ok {
			continue
		}
		placemarks = append(placemarks, kml.Placemark(
			kml.Name(placemarkName(f)),
			kml.Description(placemarkDescription(f)),
			kml.Point(kml.Coordinates(kml.Coordinate{Lon: pt.Lon(), Lat: pt.Lat()})),
		))
	}

	doc := kml.KML(kml.Document(placemarks...))
	return doc.WriteIndent(w, "", "  ")
}

func placemarkName(f *geojson.Feature) string {
	for _, k := range nameKeys {
		if v, ok := f.Properties[k]; ok && v != nil {
			if s := fmt.Sprintf("%v", v); s != "" {
				return s
			}
		}
	}
	return "site"
}

func placemarkDescription(f *geojson.Feature) string {
	desc := ""
	for _, k := range []string{"band", "city", "Azimuth"} {
		if v, ok := f.Properties[k]; ok && v != nil {
			if desc != "" {
				desc += ", "
			}
			desc += fmt.Sprintf("%s: %v", k, v)
		}
	}
	return desc
}
