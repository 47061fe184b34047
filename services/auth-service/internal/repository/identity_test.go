package repository

import (
	"testing"

	"github.com/vasapolrittideah/identity-portal/services/auth-service/internal/model"
)

func TestUpdateOAuthLinkColumns(t *testing.T) {
	tests := []struct {
		name      string
		params    UpdateOAuthLinkParams
		wantOK    bool
		wantImage bool
		idColumn  string
	}{
		{
			name:      "google with image",
			params:    UpdateOAuthLinkParams{Provider: model.ProviderGoogle, ProviderID: "g", ProfileImage: "data:x"},
			wantOK:    true,
			wantImage: true,
			idColumn:  "google_id",
		},
		{
			name:     "github without image",
			params:   UpdateOAuthLinkParams{Provider: model.ProviderGithub, ProviderID: "h"},
			wantOK:   true,
			idColumn: "github_id",
		},
		{
			name:   "local is not a link",
			params: UpdateOAuthLinkParams{Provider: model.ProviderLocal, ProviderID: "x"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set, ok := tt.params.columns()
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if set[tt.idColumn] != tt.params.ProviderID {
				t.Fatalf("%s = %v", tt.idColumn, set[tt.idColumn])
			}
			if _, has := set["profile_image"]; has != tt.wantImage {
				t.Fatalf("profile_image present = %v, want %v", has, tt.wantImage)
			}
		})
	}
}
