package telemetry

import (
	"encoding/json"
	"math"
	"strings"
	"testing"
	"time"
)

func TestSampleJSONNonFinite(t *testing.T) {
	s := Sample{SessionID: "s", Timestamp: time.UnixMilli(1000).UTC(), Values: []float64{1.5, math.NaN(), math.Inf(1), math.Inf(-1)}}
	data, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(data), `"values":[1.5,null,null,null]`) {
		t.Fatalf("unexpected encoding %s", data)
	}

	var got Sample
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.SessionID != "s" || !got.Timestamp.Equal(s.Timestamp) || len(got.Values) != 4 {
		t.Fatalf("unexpected sample %+v", got)
	}
	if got.Values[0] != 1.5 || !math.IsNaN(got.Values[1]) || !math.IsNaN(got.Values[3]) {
		t.Fatalf("unexpected values %v", got.Values)
	}
}

func TestJSONFloatsKeepsNil(t *testing.T) {
	if JSONFloats(nil) != nil || Floats(nil) != nil {
		t.Fatalf("nil slices must stay nil")
	}
}
