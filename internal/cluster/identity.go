package cluster

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"
)

// Identity carries best-effort cluster identification stamped onto reports so
// consumers can tell which cluster a gate run checked.
type Identity struct {
	ClusterID   string
	ClusterName string
	Region      string
	ProjectID   string
}

// ErrNoIdentity is returned when no metadata source can identify the cluster.
var ErrNoIdentity = errors.New("cluster identity could not be resolved")

const (
	gkeMetadataBase   = "http://metadata.google.internal/computeMetadata/v1"
	gkeMetadataFlavor = "Google"
)

// IdentityResolver probes the GKE metadata server for cluster identity.
// Resolution failure is expected off-GKE and is never fatal to a gate run.
type IdentityResolver struct {
	client      *http.Client
	metadataURL string
}

func NewIdentityResolver(timeout time.Duration) *IdentityResolver {
	return &IdentityResolver{
		client:      &http.Client{Timeout: timeout},
		metadataURL: gkeMetadataBase,
	}
}

// NewIdentityResolverWithURL creates a resolver against a custom metadata URL (for testing)
func NewIdentityResolverWithURL(client *http.Client, metadataURL string) *IdentityResolver {
	return &IdentityResolver{client: client, metadataURL: metadataURL}
}

// Resolve detects the metadata server and assembles the cluster identity.
func (r *IdentityResolver) Resolve(ctx context.Context) (*Identity, error) {
	if !r.detect(ctx) {
		return nil, ErrNoIdentity
	}

	clusterName, err := r.getMetadata(ctx, "/instance/attributes/cluster-name")
	if err != nil {
		return nil, fmt.Errorf("failed to get cluster-name: %w", err)
	}

	projectID, err := r.getMetadata(ctx, "/project/project-id")
	if err != nil {
		return nil, fmt.Errorf("failed to get project-id: %w", err)
	}

	zone, err := r.getMetadata(ctx, "/instance/zone")
	if err != nil {
		return nil, fmt.Errorf("failed to get zone: %w", err)
	}

	// Zone metadata format: projects/<project-number>/zones/<zone>
	region := regionFromZone(path.Base(zone))

	return &Identity{
		ClusterID:   fmt.Sprintf("gcp/%s/%s/%s", projectID, region, clusterName),
		ClusterName: clusterName,
		Region:      region,
		ProjectID:   projectID,
	}, nil
}

// detect checks whether the GKE metadata server is reachable. It returns 200
// with a Metadata-Flavor: Google header when running on GCP.
func (r *IdentityResolver) detect(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.metadataURL+"/", nil)
	if err != nil {
		return false
	}
	req.Header.Set("Metadata-Flavor", gkeMetadataFlavor)

	resp, err := r.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK &&
		resp.Header.Get("Metadata-Flavor") == gkeMetadataFlavor
}

func (r *IdentityResolver) getMetadata(ctx context.Context, metadataPath string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.metadataURL+metadataPath, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Metadata-Flavor", gkeMetadataFlavor)

	resp, err := r.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("metadata request failed with status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(string(body)), nil
}

// regionFromZone extracts the region from a zone name (us-central1-a -> us-central1)
func regionFromZone(zone string) string {
	lastDash := strings.LastIndex(zone, "-")
	if lastDash == -1 {
		return zone
	}
	return zone[:lastDash]
}
