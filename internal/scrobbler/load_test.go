package scrobbler

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestParseCSV(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []Request
		wantErr bool
	}{
		{
			name:  "with header",
			input: "artist,track,album,count\nPink Floyd,Time,The Dark Side of the Moon,3\n",
			want:  []Request{{Artist: "Pink Floyd", Track: "Time", Album: "The Dark Side of the Moon", Count: 3}},
		},
		{
			name:  "without header and optional columns",
			input: "Radiohead,Creep\nBjörk,Jóga,Homogenic\n",
			want: []Request{
				{Artist: "Radiohead", Track: "Creep", Count: 1},
				{Artist: "Björk", Track: "Jóga", Album: "Homogenic", Count: 1},
			},
		},
		{
			name:  "quoted fields and comments",
			input: "# my list\n\"Crosby, Stills & Nash\",\"Helplessly Hoping\",,2\n",
			want:  []Request{{Artist: "Crosby, Stills & Nash", Track: "Helplessly Hoping", Count: 2}},
		},
		{
			name:  "empty count means one",
			input: "A,T,X,\n",
			want:  []Request{{Artist: "A", Track: "T", Album: "X", Count: 1}},
		},
		{
			name:    "missing track",
			input:   "OnlyArtist\n",
			wantErr: true,
		},
		{
			name:    "invalid count",
			input:   "A,T,X,many\n",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCSV(strings.NewReader(tt.input))
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestParseYAML(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []Request
		wantErr bool
	}{
		{
			name: "top-level list",
			input: `
- artist: Pink Floyd
  track: Money
  count: 4
- artist: Pink Floyd
  track: Us and Them
  album: The Dark Side of the Moon
`,
			want: []Request{
				{Artist: "Pink Floyd", Track: "Money", Count: 4},
				{Artist: "Pink Floyd", Track: "Us and Them", Album: "The Dark Side of the Moon", Count: 1},
			},
		},
		{
			name: "requests key",
			input: `
requests:
  - artist: Nina Simone
    track: Sinnerman
    count: 0
`,
			want: []Request{{Artist: "Nina Simone", Track: "Sinnerman", Count: 0}},
		},
		{
			name:    "not yaml",
			input:   "artist: [unclosed",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseYAML(strings.NewReader(tt.input))
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestLoadRequests(t *testing.T) {
	dir := t.TempDir()

	csvPath := filepath.Join(dir, "plays.csv")
	if err := os.WriteFile(csvPath, []byte("A,T,,2\n"), 0644); err != nil {
		t.Fatalf("failed to write csv: %v", err)
	}
	yamlPath := filepath.Join(dir, "plays.YML")
	if err := os.WriteFile(yamlPath, []byte("- artist: B\n  track: U\n"), 0644); err != nil {
		t.Fatalf("failed to write yaml: %v", err)
	}

	reqs, err := LoadRequests(csvPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(reqs) != 1 || reqs[0].Count != 2 {
		t.Errorf("unexpected csv requests %+v", reqs)
	}

	reqs, err = LoadRequests(yamlPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(reqs) != 1 || reqs[0].Artist != "B" || reqs[0].Count != 1 {
		t.Errorf("unexpected yaml requests %+v", reqs)
	}

	if _, err := LoadRequests(filepath.Join(dir, "missing.csv")); err == nil {
		t.Error("expected error for missing file")
	}
}
