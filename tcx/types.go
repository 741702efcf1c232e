package tcx

import (
	"encoding/xml"
)

const (
	NamespaceTCX           = "http://www.garmin.com/xmlschemas/TrainingCenterDatabase/v2"
	NamespaceXSI           = "http://www.w3.org/2001/XMLSchema-instance"
	NamespaceActivityExtV2 = "http://www.garmin.com/xmlschemas/ActivityExtension/v2"
	SchemaLocation         = NamespaceTCX + " http://www8.garmin.com/xmlschemas/TrainingCenterDatabasev2.xsd"

	// extPrefix is the prefix the encoder binds to NamespaceActivityExtV2.
	extPrefix = "ns3"
)

// rawXML preserves an element we do not model, attributes and all,
// so it can be written back out unchanged.
type rawXML struct {
	Attrs []xml.Attr `xml:",any,attr"`
	Inner []byte     `xml:",innerxml"`
}

func (r rawXML) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	for _, a := range r.Attrs {
		start.Attr = append(start.Attr, qualifiedAttr(a))
	}
	type inner struct {
		Content []byte `xml:",innerxml"`
	}
	return e.EncodeElement(inner{Content: r.Inner}, start)
}

// qualifiedAttr turns a decoded, namespace-resolved attribute back into
// its prefixed form. Only xsi is known; other namespaces lose their prefix.
func qualifiedAttr(a xml.Attr) xml.Attr {
	switch a.Name.Space {
	case "":
		return a
	case NamespaceXSI:
		return xml.Attr{Name: xml.Name{Local: "xsi:" + a.Name.Local}, Value: a.Value}
	case "xmlns":
		return xml.Attr{Name: xml.Name{Local: "xmlns:" + a.Name.Local}, Value: a.Value}
	}
	return xml.Attr{Name: xml.Name{Local: a.Name.Local}, Value: a.Value}
}

// xmlDocument is the decode-side root. Namespace declarations land in Attrs.
type xmlDocument struct {
	Attrs      []xml.Attr     `xml:",any,attr"`
	Activities *xmlActivities `xml:"Activities"`
	Author     *rawXML        `xml:"Author"`
}

// xmlOutDocument is the encode-side root, with the namespace header
// the target platform requires.
type xmlOutDocument struct {
	XMLName        xml.Name       `xml:"TrainingCenterDatabase"`
	XMLNS          string         `xml:"xmlns,attr"`
	XMLNSXSI       string         `xml:"xmlns:xsi,attr"`
	SchemaLocation string         `xml:"xsi:schemaLocation,attr"`
	XMLNSExt       string         `xml:"xmlns:ns3,attr"`
	Extra          []xml.Attr     `xml:",any,attr"`
	Activities     *xmlActivities `xml:"Activities"`
	Author         *rawXML        `xml:"Author,omitempty"`
}

type xmlActivities struct {
	Activity []xmlActivity `xml:"Activity"`
}

type xmlActivity struct {
	Sport    string   `xml:"Sport,attr"`
	ID       string   `xml:"Id"`
	Laps     []xmlLap `xml:"Lap"`
	Notes    string   `xml:"Notes,omitempty"`
	Training *rawXML  `xml:"Training,omitempty"`
	Creator  *rawXML  `xml:"Creator,omitempty"`
}

type xmlLap struct {
	StartTime           string     `xml:"StartTime,attr"`
	TotalTimeSeconds    string     `xml:"TotalTimeSeconds,omitempty"`
	DistanceMeters      string     `xml:"DistanceMeters,omitempty"`
	MaximumSpeed        string     `xml:"MaximumSpeed,omitempty"`
	Calories            string     `xml:"Calories,omitempty"`
	AverageHeartRateBpm *xmlValue  `xml:"AverageHeartRateBpm,omitempty"`
	MaximumHeartRateBpm *xmlValue  `xml:"MaximumHeartRateBpm,omitempty"`
	Intensity           string     `xml:"Intensity,omitempty"`
	Cadence             string     `xml:"Cadence,omitempty"`
	TriggerMethod       string     `xml:"TriggerMethod,omitempty"`
	Tracks              []xmlTrack `xml:"Track"`
	Notes               string     `xml:"Notes,omitempty"`
	Extensions          *rawXML    `xml:"Extensions,omitempty"`
}

type xmlTrack struct {
	Trackpoints []xmlTrackpoint `xml:"Trackpoint"`
}

type xmlTrackpoint struct {
	Time           string                   `xml:"Time"`
	Position       *xmlPosition             `xml:"Position,omitempty"`
	AltitudeMeters string                   `xml:"AltitudeMeters,omitempty"`
	DistanceMeters string                   `xml:"DistanceMeters,omitempty"`
	HeartRateBpm   *xmlValue                `xml:"HeartRateBpm,omitempty"`
	Cadence        string                   `xml:"Cadence,omitempty"`
	SensorState    string                   `xml:"SensorState,omitempty"`
	Extensions     *xmlTrackpointExtensions `xml:"Extensions,omitempty"`
}

type xmlPosition struct {
	LatitudeDegrees  string `xml:"LatitudeDegrees"`
	LongitudeDegrees string `xml:"LongitudeDegrees"`
}

type xmlValue struct {
	Value string `xml:"Value"`
}

type xmlTrackpointExtensions struct {
	TPX *xmlTPX `xml:"TPX"`
}

// xmlTPX is the ActivityExtension v2 trackpoint block.
// Decoding matches on local names whatever prefix the source used;
// encoding always writes the ns3 prefix bound on the root.
type xmlTPX struct {
	Speed      string `xml:"Speed"`
	RunCadence string `xml:"RunCadence"`
	Watts      string `xml:"Watts"`
}

func (x xmlTPX) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	start = xml.StartElement{Name: xml.Name{Local: extPrefix + ":TPX"}}
	if err := e.EncodeToken(start); err != nil {
		return err
	}
	for _, kv := range [][2]string{
		{"Speed", x.Speed},
		{"RunCadence", x.RunCadence},
		{"Watts", x.Watts},
	} {
		if kv[1] == "" {
			continue
		}
		el := xml.StartElement{Name: xml.Name{Local: extPrefix + ":" + kv[0]}}
		if err := e.EncodeElement(kv[1], el); err != nil {
			return err
		}
	}
	return e.EncodeToken(start.End())
}

func (x *xmlTPX) isEmpty() bool {
	return x == nil || (x.Speed == "" && x.RunCadence == "" && x.Watts == "")
}
