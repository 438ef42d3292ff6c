package cluster

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

const (
	testMetadataPath    = "/computeMetadata/v1"
	testClusterNamePath = testMetadataPath + "/instance/attributes/cluster-name"
	testProjectIDPath   = testMetadataPath + "/project/project-id"
	testZonePath        = testMetadataPath + "/instance/zone"
)

func TestIdentityResolverResolve(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Metadata-Flavor", gkeMetadataFlavor)
		switch r.URL.Path {
		case testMetadataPath + "/":
			w.WriteHeader(http.StatusOK)
		case testClusterNamePath:
			_, _ = w.Write([]byte("test-cluster"))
		case testProjectIDPath:
			_, _ = w.Write([]byte("test-project"))
		case testZonePath:
			_, _ = w.Write([]byte("projects/123/zones/us-central1-a"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := &http.Client{Timeout: 2 * time.Second}
	resolver := NewIdentityResolverWithURL(client, server.URL+testMetadataPath)

	identity, err := resolver.Resolve(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	expectedID := "gcp/test-project/us-central1/test-cluster"
	if identity.ClusterID != expectedID {
		t.Errorf("expected cluster ID %q, got %q", expectedID, identity.ClusterID)
	}
	if identity.Region != "us-central1" {
		t.Errorf("expected region us-central1, got %q", identity.Region)
	}
}

func TestIdentityResolverNotOnGKE(t *testing.T) {
	// A server without the metadata flavor header is not a metadata server.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := &http.Client{Timeout: 2 * time.Second}
	resolver := NewIdentityResolverWithURL(client, server.URL+testMetadataPath)

	_, err := resolver.Resolve(context.Background())
	if !errors.Is(err, ErrNoIdentity) {
		t.Errorf("expected ErrNoIdentity, got: %v", err)
	}
}

func TestRegionFromZone(t *testing.T) {
	tests := []struct {
		zone     string
		expected string
	}{
		{"us-central1-a", "us-central1"},
		{"europe-west4-b", "europe-west4"},
		{"nozone", "nozone"},
	}

	for _, tt := range tests {
		if got := regionFromZone(tt.zone); got != tt.expected {
			t.Errorf("regionFromZone(%q) = %q, expected %q", tt.zone, got, tt.expected)
		}
	}
}
