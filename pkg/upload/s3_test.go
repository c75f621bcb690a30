package upload

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolvePrefix(t *testing.T) {
	tests := []struct {
		name     string
		prefix   string
		baseName string
		want     string
	}{
		{
			name:     "default prefix",
			prefix:   "",
			baseName: "20260828T120000_select1",
			want:     "querybench/results/20260828T120000_select1",
		},
		{
			name:     "custom prefix",
			prefix:   "team/benchmarks",
			baseName: "20260828T120000_select1",
			want:     "team/benchmarks/20260828T120000_select1",
		},
		{
			name:     "trailing slash stripped",
			prefix:   "my-prefix/",
			baseName: "results.csv",
			want:     "my-prefix/results.csv",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := &s3Uploader{
				cfg: &Config{Prefix: tt.prefix},
			}
			got := u.resolvePrefix(tt.baseName)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDetectContentType(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		wantPrefix string
	}{
		{
			name:       "csv file",
			path:       "results/raw.csv",
			wantPrefix: "text/csv",
		},
		{
			name:       "json file",
			path:       "results/report.json",
			wantPrefix: "application/json",
		},
		{
			name:       "no extension",
			path:       "results/Makefile",
			wantPrefix: "application/octet-stream",
		},
		{
			name:       "txt file",
			path:       "results/notes.txt",
			wantPrefix: "text/plain",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := detectContentType(tt.path)
			assert.Contains(t, got, tt.wantPrefix)
		})
	}
}
