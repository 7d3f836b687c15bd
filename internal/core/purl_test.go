package core

import "testing"

func TestRepositoryFromPURL(t *testing.T) {
	tests := []struct {
		purl        string
		wantRepo    string
		wantVersion string
		wantErr     bool
	}{
		{"pkg:github/octo/hello", "octo/hello", "", false},
		{"pkg:github/octo/hello@v1.2.0", "octo/hello", "v1.2.0", false},
		{"pkg:npm/lodash@4.17.21", "", "", true},
		{"not-a-purl", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.purl, func(t *testing.T) {
			repo, version, err := RepositoryFromPURL(tt.purl)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if repo.String() != tt.wantRepo {
				t.Errorf("repo = %q, want %q", repo.String(), tt.wantRepo)
			}
			if version != tt.wantVersion {
				t.Errorf("version = %q, want %q", version, tt.wantVersion)
			}
		})
	}
}
