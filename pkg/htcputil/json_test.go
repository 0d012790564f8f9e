package htcputil

import "testing"

type greeting struct {
	Name string `json:"name"`
}

func TestJSONRoundTrip(t *testing.T) {
	want := greeting{Name: "htcp"}

	data, err := JSONEncode(want)
	if err != nil {
		t.Fatalf("JSONEncode: %v", err)
	}

	got, err := JSONDecode[greeting](data)
	if err != nil {
		t.Fatalf("JSONDecode: %v", err)
	}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestJSONDecodeMalformed(t *testing.T) {
	if _, err := JSONDecode[greeting]([]byte("not json")); err == nil {
		t.Error("expected an error decoding malformed JSON")
	}
}
