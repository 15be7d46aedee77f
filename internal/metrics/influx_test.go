package metrics

import "testing"

func TestNewInfluxExporter_UnreachableServerErrors(t *testing.T) {
	_, err := NewInfluxExporter(InfluxConfig{
		URL:    "http://127.0.0.1:1", // reserved, nothing listens here
		Token:  "test-token",
		Org:    "test-org",
		Bucket: "test-bucket",
	})
	if err == nil {
		t.Fatal("expected an error connecting to an unreachable InfluxDB host")
	}
}
