package types

import (
	"encoding/json"
	"testing"
)

func TestIndicatorTypeName(t *testing.T) {
	tests := []struct {
		t    IndicatorType
		want string
	}{
		{HashMD5, "HASH_MD5"},
		{IPAddress, "IP_ADDRESS"},
		{RegistryKey, "REGISTRY_KEY"},
		{Unknown, "UNKNOWN"},
		{IndicatorType(-1), "UNKNOWN"},
		{IndicatorType(42), "UNKNOWN"},
	}
	for _, tt := range tests {
		if got := tt.t.Name(); got != tt.want {
			t.Errorf("IndicatorType(%d).Name() = %q, want %q", int(tt.t), got, tt.want)
		}
	}
}

func TestIndicatorTypeText(t *testing.T) {
	for _, it := range AllTypes() {
		text, err := it.MarshalText()
		if err != nil {
			t.Fatalf("MarshalText(%s) failed: %v", it, err)
		}
		var back IndicatorType
		if err := back.UnmarshalText(text); err != nil {
			t.Fatalf("UnmarshalText(%s) failed: %v", text, err)
		}
		if back != it {
			t.Errorf("text round trip of %s gave %s", it, back)
		}
	}

	var it IndicatorType
	if err := it.UnmarshalText([]byte(" Sha256 ")); err == nil {
		t.Error("expected an error for a name that is not an indicator type")
	}
	if err := it.UnmarshalText([]byte(" hash_sha256 ")); err != nil || it != HashSHA256 {
		t.Errorf("UnmarshalText(hash_sha256) = %s, %v", it, err)
	}
}

func TestIndicatorJSON(t *testing.T) {
	data, err := json.Marshal(Indicator{Value: "8.8.8.8", Type: IPAddress, TypeName: "IP Address"})
	if err != nil {
		t.Fatal(err)
	}
	want := `{"value":"8.8.8.8","type":"ip_address","type_name":"IP Address"}`
	if string(data) != want {
		t.Errorf("got %s, want %s", data, want)
	}
}
