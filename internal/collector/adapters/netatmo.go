package adapters

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/speedwagon-io/homechecks/internal/collector"
	"github.com/speedwagon-io/homechecks/internal/config"
	"github.com/speedwagon-io/homechecks/internal/model"
	"github.com/speedwagon-io/homechecks/internal/pipeline"
)

const (
	KindStation = "station"
	KindModule  = "module"

	attrStationName = "station_name"
	attrHomeID      = "home_id"
	attrHomeName    = "home_name"
	attrFirmware    = "firmware"
	attrDeviceType  = "device_type"
)

var netatmoLayout = pipeline.Layout{
	Inherit: []string{attrStationName, attrHomeID, attrHomeName},
	Own:     []string{attrFirmware, attrDeviceType},
}

// NetatmoLayouts: modules inherit the station and home of their station.
var NetatmoLayouts = map[string]pipeline.Layout{
	KindStation: netatmoLayout,
	KindModule:  netatmoLayout,
}

// Top level device fields reported next to dashboard_data.
var netatmoDeviceFields = []string{
	"last_setup",
	"battery_percent",
	"last_message",
	"last_seen",
	"rf_status",
	"battery_vp",
	"wifi_status",
	"last_status_store",
}

var _ collector.Check = (*Netatmo)(nil)

// Netatmo polls getstationsdata of the Netatmo weather API.
type Netatmo struct {
	log      *slog.Logger
	baseURL  string
	deviceID string
	oauth    *oauth2.Config
	username string
	password string
	refresh  string

	httpClient *http.Client
	client     *http.Client
}

func NewNetatmo(log *slog.Logger, cfg *config.NetatmoConfig, timeout time.Duration) *Netatmo {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")

	return &Netatmo{
		log:      log,
		baseURL:  baseURL,
		deviceID: cfg.DeviceID,
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint: oauth2.Endpoint{
				TokenURL:  baseURL + "/oauth2/token",
				AuthStyle: oauth2.AuthStyleInParams,
			},
			Scopes: []string{"read_station"},
		},
		username:   cfg.Username,
		password:   cfg.Password,
		refresh:    cfg.RefreshToken,
		httpClient: newHTTPClient(timeout),
	}
}

func (n *Netatmo) Name() string {
	return "netatmo"
}

func (n *Netatmo) Close() error {
	n.httpClient.CloseIdleConnections()
	return nil
}

// authorizedClient returns an HTTP client that refreshes its token on its
// own. The first token comes from the configured refresh token, or from the
// password grant when none is set.
func (n *Netatmo) authorizedClient(ctx context.Context) (*http.Client, error) {
	if n.client != nil {
		return n.client, nil
	}

	// The token source outlives this call, so it must not hold a cycle context.
	baseCtx := context.WithValue(context.Background(), oauth2.HTTPClient, n.httpClient)

	var token *oauth2.Token
	if n.refresh != "" {
		token = &oauth2.Token{RefreshToken: n.refresh}
	} else {
		var err error
		token, err = n.oauth.PasswordCredentialsToken(context.WithValue(ctx, oauth2.HTTPClient, n.httpClient), n.username, n.password)
		if err != nil {
			return nil, fmt.Errorf("failed to obtain token: %w", err)
		}
	}

	n.client = oauth2.NewClient(baseCtx, n.oauth.TokenSource(baseCtx, token))
	return n.client, nil
}

type netatmoResponse struct {
	Status string `json:"status"`
	Error  *struct {
		Code    any    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	Body struct {
		Devices []map[string]any `json:"devices"`
	} `json:"body"`
}

func (n *Netatmo) Fetch(ctx context.Context) (*model.Snapshot, error) {
	client, err := n.authorizedClient(ctx)
	if err != nil {
		return nil, err
	}

	endpoint := n.baseURL + "/api/getstationsdata"
	if n.deviceID != "" {
		endpoint += "?" + url.Values{"device_id": {n.deviceID}}.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		n.client = nil
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	var data netatmoResponse
	if err := decodeBody(resp, &data); err != nil {
		return nil, err
	}
	if data.Status != "ok" {
		msg := data.Status
		if data.Error != nil {
			msg = data.Error.Message
		}
		return nil, fmt.Errorf("netatmo api error: %s", msg)
	}

	snapshot := model.NewSnapshot("netatmo")
	for _, d := range data.Body.Devices {
		station := netatmoEntity(d, KindStation)
		modules, _ := d["modules"].([]any)
		for _, m := range modules {
			if module, ok := m.(map[string]any); ok {
				station.Children = append(station.Children, netatmoEntity(module, KindModule))
			}
		}
		snapshot.Entities = append(snapshot.Entities, station)
	}

	return snapshot, nil
}

func netatmoEntity(d map[string]any, kind string) *model.Entity {
	e := &model.Entity{Kind: kind}
	e.ID, _ = attrString(d["_id"])

	if kind == KindStation {
		e.Name, _ = attrString(d[attrStationName])
	} else {
		e.Name, _ = attrString(d["module_name"])
	}

	for _, key := range []string{attrStationName, attrHomeID, attrHomeName, attrFirmware} {
		if v, ok := attrString(d[key]); ok {
			e.SetAttr(key, v)
		}
	}
	if v, ok := attrString(d["type"]); ok {
		e.SetAttr(attrDeviceType, v)
	}

	if dashboard, ok := d["dashboard_data"].(map[string]any); ok {
		keys := make([]string, 0, len(dashboard))
		for k := range dashboard {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			e.AddState(k, stateValue(dashboard[k]))
		}
	}

	for _, k := range netatmoDeviceFields {
		if v, ok := d[k]; ok {
			e.AddState(k, stateValue(v))
		}
	}

	return e
}
