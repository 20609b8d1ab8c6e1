package domain

import (
	"errors"
	"testing"
)

func TestValidateResolution(t *testing.T) {
	tests := []struct {
		name       string
		resolution Resolution
		wantErr    bool
	}{
		{name: "480p", resolution: Resolution480p, wantErr: false},
		{name: "720p", resolution: Resolution720p, wantErr: false},
		{name: "1080p", resolution: Resolution1080p, wantErr: false},
		{name: "empty", resolution: "", wantErr: true},
		{name: "4k not supported", resolution: "2160p", wantErr: true},
		{name: "bare number", resolution: "720", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateResolution(tt.resolution)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateResolution(%q) = %v, wantErr %v", tt.resolution, err, tt.wantErr)
			}
			if err != nil && !IsValidation(err) {
				t.Errorf("ValidateResolution(%q) returned %T, want *ValidationError", tt.resolution, err)
			}
		})
	}
}

func TestValidateStatus(t *testing.T) {
	for _, s := range []JobStatus{JobStatusPending, JobStatusTranscoding, JobStatusReady, JobStatusFailed} {
		if err := ValidateStatus(s); err != nil {
			t.Errorf("ValidateStatus(%q) = %v, want nil", s, err)
		}
	}
	if err := ValidateStatus("done"); err == nil {
		t.Error("ValidateStatus(\"done\") = nil, want error")
	}
}

func TestValidateProgress(t *testing.T) {
	tests := []struct {
		progress float64
		wantErr  bool
	}{
		{0.0, false},
		{0.5, false},
		{1.0, false},
		{-0.1, true},
		{1.01, true},
	}

	for _, tt := range tests {
		err := ValidateProgress(tt.progress)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateProgress(%v) = %v, wantErr %v", tt.progress, err, tt.wantErr)
		}
	}
}

func TestValidateFileSize(t *testing.T) {
	if err := ValidateFileSize(1); err != nil {
		t.Errorf("ValidateFileSize(1) = %v, want nil", err)
	}
	if err := ValidateFileSize(0); err == nil {
		t.Error("ValidateFileSize(0) = nil, want error")
	}
	if err := ValidateFileSize(-5); err == nil {
		t.Error("ValidateFileSize(-5) = nil, want error")
	}
}

func TestValidationErrorMessage(t *testing.T) {
	err := ValidateResolution("900p")
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected *ValidationError, got %T", err)
	}
	if ve.Field != "resolution" {
		t.Errorf("Field = %q, want %q", ve.Field, "resolution")
	}
}

func TestJobKeyString(t *testing.T) {
	key := JobKey{MediaFileID: "film-42", Resolution: Resolution720p}
	if got := key.String(); got != "film-42@720p" {
		t.Errorf("String() = %q, want %q", got, "film-42@720p")
	}
}
