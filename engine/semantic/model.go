// Package semantic implements the evidence store on Qdrant.
package semantic

import (
	"strings"

	"github.com/WessleyAI/wessley-diagnose/engine/domain"
	"github.com/google/uuid"
	pb "github.com/qdrant/go-client/qdrant"
)

// Payload keys stored alongside each bulletin vector.
const (
	keyDocID     = "doc_id"
	keyMake      = "make"
	keyModel     = "model"
	keyYearMin   = "year_min"
	keyYearMax   = "year_max"
	keyComponent = "component"
	keySymptom   = "symptom"
	keyDiagnosis = "diagnosis"
	keyRemedy    = "remedy"
	keySeverity  = "severity"
)

// PointID derives a stable Qdrant point id from a bulletin id, so
// re-ingesting a bulletin overwrites its point.
func PointID(docID string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("wessley:evidence:"+docID)).String()
}

// makeKey is the form makes are stored and filtered in.
func makeKey(m string) string {
	return strings.ToLower(domain.CanonicalMake(m))
}

func toPayload(d domain.EvidenceDocument) map[string]*pb.Value {
	return map[string]*pb.Value{
		keyDocID:     str(d.ID),
		keyMake:      str(makeKey(d.VehicleScope.Make)),
		keyModel:     str(d.VehicleScope.Model),
		keyYearMin:   integer(d.VehicleScope.YearMin),
		keyYearMax:   integer(d.VehicleScope.YearMax),
		keyComponent: str(d.Component),
		keySymptom:   str(d.SymptomText),
		keyDiagnosis: str(d.DiagnosisText),
		keyRemedy:    str(d.RemedyText),
		keySeverity:  str(string(d.Severity)),
	}
}

func fromPayload(p map[string]*pb.Value) domain.EvidenceDocument {
	s := func(k string) string { return p[k].GetStringValue() }
	return domain.EvidenceDocument{
		ID: s(keyDocID),
		VehicleScope: domain.VehicleScope{
			Make:    domain.CanonicalMake(s(keyMake)),
			Model:   s(keyModel),
			YearMin: int(p[keyYearMin].GetIntegerValue()),
			YearMax: int(p[keyYearMax].GetIntegerValue()),
		},
		Component:     s(keyComponent),
		SymptomText:   s(keySymptom),
		DiagnosisText: s(keyDiagnosis),
		RemedyText:    s(keyRemedy),
		Severity:      domain.ParseSeverity(s(keySeverity)),
	}
}

func str(s string) *pb.Value {
	return &pb.Value{Kind: &pb.Value_StringValue{StringValue: s}}
}

func integer(i int) *pb.Value {
	return &pb.Value{Kind: &pb.Value_IntegerValue{IntegerValue: int64(i)}}
}
