package azure

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/arm"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pankaj-dahiya-devops/cloudsweep/internal/auditerr"
	"github.com/pankaj-dahiya-devops/cloudsweep/internal/models"
	"github.com/pankaj-dahiya-devops/cloudsweep/internal/providers"
)

type fakeCredential struct{}

func (fakeCredential) GetToken(context.Context, policy.TokenRequestOptions) (azcore.AccessToken, error) {
	return azcore.AccessToken{Token: "token", ExpiresOn: time.Now().Add(time.Hour)}, nil
}

type reply struct {
	status int
	body   any
}

// fakeARM answers "METHOD /path" requests; the api-version query is ignored.
type fakeARM struct {
	mu      sync.Mutex
	replies map[string]reply
	seen    []string
	bodies  map[string][]byte
}

func (f *fakeARM) Do(req *http.Request) (*http.Response, error) {
	key := req.Method + " " + req.URL.Path
	var payload []byte
	if req.Body != nil {
		payload, _ = io.ReadAll(req.Body)
	}

	f.mu.Lock()
	f.seen = append(f.seen, key)
	if len(payload) > 0 {
		f.bodies[key] = payload
	}
	rp, ok := f.replies[key]
	f.mu.Unlock()
	if !ok {
		rp = reply{status: http.StatusNotFound, body: armError("ResourceNotFound", "no reply for "+key)}
	}

	var buf []byte
	if rp.body != nil {
		buf, _ = json.Marshal(rp.body)
	}
	return &http.Response{
		StatusCode: rp.status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(bytes.NewReader(buf)),
		Request:    req,
	}, nil
}

func (f *fakeARM) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.seen...)
}

func armError(code, msg string) map[string]any {
	return map[string]any{"error": map[string]any{"code": code, "message": msg}}
}

func newTestAdapter(t *testing.T, replies map[string]reply) (*Adapter, *fakeARM) {
	t.Helper()
	fake := &fakeARM{replies: replies, bodies: make(map[string][]byte)}
	opts := &arm.ClientOptions{
		ClientOptions: policy.ClientOptions{
			Transport: fake,
			Retry:     policy.RetryOptions{MaxRetries: -1},
		},
		DisableRPRegistration: true,
	}
	a, err := NewWithCredential("sub", fakeCredential{}, opts)
	require.NoError(t, err)
	a.now = func() time.Time { return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC) }
	return a, fake
}

const (
	diskID = "/subscriptions/sub/resourceGroups/rg1/providers/Microsoft.Compute/disks/orphan"
	nsgID  = "/subscriptions/sub/resourceGroups/rg1/providers/Microsoft.Network/networkSecurityGroups/web-nsg"
)

func disksReply() reply {
	return reply{status: 200, body: map[string]any{"value": []map[string]any{
		{
			"id": diskID, "name": "orphan", "location": "East US",
			"sku":        map[string]any{"name": "Premium_LRS"},
			"properties": map[string]any{"diskSizeGB": 100, "diskState": "Unattached", "timeCreated": "2024-01-01T00:00:00Z"},
		},
		{
			"id":         "/subscriptions/sub/resourceGroups/rg1/providers/Microsoft.Compute/disks/boot",
			"name":       "boot",
			"location":   "westeurope",
			"managedBy":  "/subscriptions/sub/resourceGroups/rg1/providers/Microsoft.Compute/virtualMachines/web",
			"properties": map[string]any{"diskSizeGB": 30, "diskState": "Attached"},
		},
	}}}
}

func nsgBody() map[string]any {
	return map[string]any{
		"id": nsgID, "name": "web-nsg", "location": "eastus",
		"properties": map[string]any{"securityRules": []map[string]any{
			{"name": "allow-ssh", "properties": map[string]any{
				"direction": "Inbound", "access": "Allow", "protocol": "Tcp", "priority": 100,
				"sourceAddressPrefix": "*", "destinationPortRange": "22",
			}},
			{"name": "allow-https", "properties": map[string]any{
				"direction": "Inbound", "access": "Allow", "protocol": "Tcp", "priority": 110,
				"sourceAddressPrefix": "Internet", "destinationPortRange": "443",
			}},
			{"name": "office-rdp", "properties": map[string]any{
				"direction": "Inbound", "access": "Allow", "protocol": "Tcp", "priority": 120,
				"sourceAddressPrefixes": []string{"10.0.0.0/8"}, "destinationPortRanges": []string{"3389"},
			}},
		}},
	}
}

func TestListResources_DisksFilteredByLocation(t *testing.T) {
	a, fake := newTestAdapter(t, map[string]reply{
		"GET /subscriptions/sub/providers/Microsoft.Compute/disks": disksReply(),
	})

	got, err := a.ListResources(context.Background(), models.KindVolume, providers.Filter{Region: "eastus"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	d := got[0]
	assert.Equal(t, diskID, d.ID)
	assert.Equal(t, "eastus", d.Region)
	assert.Equal(t, 100.0, *d.SizeGB)
	assert.Equal(t, false, d.Attributes[models.AttrAttached])
	assert.Equal(t, "rg1", d.Attributes[models.AttrResourceGroup])
	assert.Equal(t, "Premium_LRS", d.Attributes[models.AttrVolumeType])

	other, err := a.ListResources(context.Background(), models.KindVolume, providers.Filter{Region: "westeurope"})
	require.NoError(t, err)
	require.Len(t, other, 1)
	assert.Equal(t, true, other[0].Attributes[models.AttrAttached])

	assert.Len(t, fake.calls(), 1, "subscription-wide listing is cached")
}

func TestRegions_UnionOfLocations(t *testing.T) {
	a, _ := newTestAdapter(t, map[string]reply{
		"GET /subscriptions/sub/providers/Microsoft.Compute/disks":                 disksReply(),
		"GET /subscriptions/sub/providers/Microsoft.Compute/snapshots":             {status: 200, body: map[string]any{"value": []any{}}},
		"GET /subscriptions/sub/providers/Microsoft.Network/publicIPAddresses":     {status: 200, body: map[string]any{"value": []any{}}},
		"GET /subscriptions/sub/providers/Microsoft.Network/networkSecurityGroups": {status: 200, body: map[string]any{"value": []any{nsgBody()}}},
	})
	regions, err := a.Regions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"eastus", "westeurope"}, regions)
}

func TestListResources_SecurityGroupIngress(t *testing.T) {
	a, _ := newTestAdapter(t, map[string]reply{
		"GET /subscriptions/sub/providers/Microsoft.Network/networkSecurityGroups": {status: 200, body: map[string]any{"value": []any{nsgBody()}}},
	})
	got, err := a.ListResources(context.Background(), models.KindSecurityGroup, providers.Filter{Region: "eastus"})
	require.NoError(t, err)
	require.Len(t, got, 1)

	ingress := got[0].Attributes[models.AttrIngress].([]any)
	require.Len(t, ingress, 3)
	ssh := ingress[0].(map[string]any)
	assert.Equal(t, "tcp", ssh["protocol"])
	assert.Equal(t, 22, ssh["from_port"])
	assert.Equal(t, []any{"*"}, ssh["cidrs"])
}

func TestListResources_AuthFailure(t *testing.T) {
	a, _ := newTestAdapter(t, map[string]reply{
		"GET /subscriptions/sub/providers/Microsoft.Compute/snapshots": {status: 403, body: armError("AuthorizationFailed", "denied")},
	})
	_, err := a.ListResources(context.Background(), models.KindSnapshot, providers.Filter{})
	require.Error(t, err)
	assert.Equal(t, auditerr.ReasonAuth, auditerr.ReasonOf(err))
}

func TestListResources_UnsupportedKind(t *testing.T) {
	a, _ := newTestAdapter(t, nil)
	_, err := a.ListResources(context.Background(), models.KindBucket, providers.Filter{})
	assert.ErrorIs(t, err, providers.ErrUnsupportedKind)
}

func TestMutate_DeleteDisk(t *testing.T) {
	a, fake := newTestAdapter(t, map[string]reply{
		"DELETE " + diskID: {status: 200},
	})
	res := models.Resource{ID: diskID, Kind: models.KindVolume, Region: "eastus"}
	require.NoError(t, a.Mutate(context.Background(), res, models.ActionDelete))
	assert.Equal(t, []string{"DELETE " + diskID}, fake.calls())
}

func TestMutate_MissingDiskIsSuccess(t *testing.T) {
	a, _ := newTestAdapter(t, nil)
	res := models.Resource{ID: diskID, Kind: models.KindVolume, Region: "eastus"}
	assert.NoError(t, a.Mutate(context.Background(), res, models.ActionDelete))
}

func TestMutate_PatchDeniesOnlyOpenAdminRules(t *testing.T) {
	ruleKey := "PUT " + nsgID + "/securityRules/allow-ssh"
	a, fake := newTestAdapter(t, map[string]reply{
		"GET " + nsgID: {status: 200, body: nsgBody()},
		ruleKey:        {status: 200, body: map[string]any{"name": "allow-ssh", "properties": map[string]any{"provisioningState": "Succeeded"}}},
	})
	res := models.Resource{ID: nsgID, Kind: models.KindSecurityGroup, Region: "eastus"}

	require.NoError(t, a.Mutate(context.Background(), res, models.ActionPatch))
	assert.Equal(t, []string{"GET " + nsgID, ruleKey}, fake.calls())

	var sent map[string]any
	require.NoError(t, json.Unmarshal(fake.bodies[ruleKey], &sent))
	assert.Equal(t, "Deny", sent["properties"].(map[string]any)["access"])
}

func TestMutate_UnsupportedAction(t *testing.T) {
	a, _ := newTestAdapter(t, nil)
	res := models.Resource{ID: diskID, Kind: models.KindVolume}
	assert.ErrorIs(t, a.Mutate(context.Background(), res, models.ActionStop), providers.ErrUnsupportedAction)
}

func TestBackup_DiskCopySnapshot(t *testing.T) {
	snapID := "/subscriptions/sub/resourceGroups/rg1/providers/Microsoft.Compute/snapshots/cloudsweep-orphan-1717200000"
	a, fake := newTestAdapter(t, map[string]reply{
		"PUT " + snapID: {status: 200, body: map[string]any{
			"id": snapID, "name": "cloudsweep-orphan-1717200000", "location": "eastus",
			"properties": map[string]any{"provisioningState": "Succeeded"},
		}},
	})
	res := models.Resource{ID: diskID, Kind: models.KindVolume, Region: "eastus"}

	ref, err := a.Backup(context.Background(), res, models.ActionDelete)
	require.NoError(t, err)
	assert.Equal(t, snapID, ref)

	var sent map[string]any
	require.NoError(t, json.Unmarshal(fake.bodies["PUT "+snapID], &sent))
	creation := sent["properties"].(map[string]any)["creationData"].(map[string]any)
	assert.Equal(t, "Copy", creation["createOption"])
	assert.Equal(t, diskID, creation["sourceResourceId"])
}

func TestBackup_SecurityGroupRecordsRules(t *testing.T) {
	a, _ := newTestAdapter(t, map[string]reply{
		"GET " + nsgID: {status: 200, body: nsgBody()},
	})
	res := models.Resource{ID: nsgID, Kind: models.KindSecurityGroup, Region: "eastus"}
	ref, err := a.Backup(context.Background(), res, models.ActionPatch)
	require.NoError(t, err)
	assert.Equal(t, "web-nsg:allow rules=allow-ssh", ref)
}

func TestParsePortSpec(t *testing.T) {
	for _, tc := range []struct {
		in       string
		from, to int
		ok       bool
	}{
		{"*", 0, 65535, true},
		{"22", 22, 22, true},
		{"1000-2000", 1000, 2000, true},
		{"abc", 0, 0, false},
	} {
		from, to, ok := parsePortSpec(tc.in)
		assert.Equal(t, tc.ok, ok, tc.in)
		assert.Equal(t, tc.from, from, tc.in)
		assert.Equal(t, tc.to, to, tc.in)
	}
}

func TestSubscriptionFromConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config")
	require.NoError(t, os.WriteFile(path, []byte("[default]\nsubscription = abc-123\n\n[empty]\ntenant = t\n"), 0o600))

	sub, err := SubscriptionFromConfig(path, "")
	require.NoError(t, err)
	assert.Equal(t, "abc-123", sub)

	_, err = SubscriptionFromConfig(path, "empty")
	assert.Error(t, err)
	_, err = SubscriptionFromConfig(path, "missing")
	assert.Error(t, err)
}
