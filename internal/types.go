package internal

import "time"

type AbundanceCell struct {
	SampleColumnID string
	OriginalName   string
	ScientificName string
	Stage          *string
	Value          *float64
}

type SampleEvent struct {
	RawID            string
	CleanID          string
	Date             time.Time
	FilteredVolumeM3 *float64
}

type JoinedRow struct {
	Cell             *AbundanceCell
	EventID          string
	EventDate        *time.Time
	FilteredVolumeM3 *float64
	InputOrder       int
}

type DwcEvent struct {
	EventID          string
	EventDate        string
	DecimalLatitude  float64
	DecimalLongitude float64
	Locality         string
	Country          string
	StateProvince    string
	WaterBody        string
	MinimumDepthM    float64
	MaximumDepthM    float64
	SamplingProtocol string
	SampleSizeValue  *float64
	SampleSizeUnit   string
}

const (
	StatusPresent = "present"
	StatusAbsent  = "absent"
)

type DwcOccurrence struct {
	EventID          string
	OccurrenceID     string
	ScientificName   string
	ScientificNameID *string
	TaxonRank        *string
	LifeStage        *string
	OccurrenceStatus string
}

type DwcMeasurement struct {
	EventID            string
	EventDate          string
	OccurrenceID       string
	MeasurementType    string
	MeasurementValue   string
	MeasurementUnit    string
	MeasurementRemarks *string
}

type MatchStatus string

const (
	MatchFound     MatchStatus = "MATCHED"
	MatchUnmatched MatchStatus = "UNMATCHED"
)

type AphiaRecord struct {
	AphiaID        int     `json:"AphiaID"`
	ScientificName string  `json:"scientificname"`
	Authority      *string `json:"authority"`
	Status         *string `json:"status"`
	Rank           *string `json:"rank"`
	LSID           *string `json:"lsid"`
	MatchType      *string `json:"match_type"`
	RawJSON        string  `json:"-"`
}

type TaxonMatch struct {
	Name   string
	Status MatchStatus
	Record *AphiaRecord
}

type Submission struct {
	ID          string
	SubmittedAt *string
	Flat        map[string]string
	RawJSON     string
}

type BuildCounts struct {
	Events       int
	Occurrences  int
	Measurements int
	UniqueTaxa   int
	Matched      int
	Unmatched    int
}
