package main

import "testing"

func TestLEDPayload(t *testing.T) {
	tests := []struct {
		in      int
		want    byte
		wantErr bool
	}{
		{0, 0, false},
		{5, 5, false},
		{9, 9, false},
		{255, 255, false},
		{256, 0, true},
		{-2, 0, true},
	}

	for _, tt := range tests {
		got, err := ledPayload(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ledPayload(%d) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && (len(got) != 1 || got[0] != tt.want) {
			t.Errorf("ledPayload(%d) = %v, want [%d]", tt.in, got, tt.want)
		}
	}
}
