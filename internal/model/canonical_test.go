package model

import "testing"

func TestCanonicalJSONKeyOrderIndependent(t *testing.T) {
	a := map[string]any{"b": 1, "a": 2, "c": map[string]any{"z": 1, "y": 2}}
	b := map[string]any{"a": 2, "c": map[string]any{"y": 2, "z": 1}, "b": 1}

	ca, err := CanonicalJSON(a)
	if err != nil {
		t.Fatalf("CanonicalJSON(a): %v", err)
	}
	cb, err := CanonicalJSON(b)
	if err != nil {
		t.Fatalf("CanonicalJSON(b): %v", err)
	}
	if string(ca) != string(cb) {
		t.Fatalf("expected canonical forms to match, got %q vs %q", ca, cb)
	}
}

func TestChecksumStableAcrossMapOrder(t *testing.T) {
	tests := []struct {
		name string
		in   []Resource
	}{
		{
			name: "single resource",
			in: []Resource{
				{ARN: "arn:aws:ec2:us-east-1:1:instance/i-1", Tags: map[string]string{"Env": "prod", "Owner": "team"}},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sum1, err := Checksum(tt.in)
			if err != nil {
				t.Fatalf("Checksum: %v", err)
			}
			sum2, err := Checksum(tt.in)
			if err != nil {
				t.Fatalf("Checksum: %v", err)
			}
			if sum1 != sum2 {
				t.Fatalf("expected stable checksum, got %s vs %s", sum1, sum2)
			}
		})
	}
}

func TestResourceKeyPrefersARN(t *testing.T) {
	r := Resource{ARN: "arn:aws:s3:::bucket", Service: "S3", Region: "us-east-1", ID: "bucket"}
	if got := r.Key(); got != "arn:aws:s3:::bucket" {
		t.Fatalf("expected ARN key, got %q", got)
	}

	r2 := Resource{Service: "RoboMaker", Region: "us-west-2", ID: "robo-1"}
	if got, want := r2.Key(), "RoboMaker:us-west-2:robo-1"; got != want {
		t.Fatalf("expected fallback key %q, got %q", want, got)
	}
}
