package adapters

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/speedwagon-io/homechecks/internal/collector"
	"github.com/speedwagon-io/homechecks/internal/config"
	"github.com/speedwagon-io/homechecks/internal/model"
	"github.com/speedwagon-io/homechecks/internal/pipeline"
)

const (
	KindDevice  = "device"
	KindSensor  = "sensor"
	KindGateway = "gateway"

	attrBuild   = "build"
	attrWidget  = "widget"
	attrVersion = "version"
	attrStatus  = "status"

	overkizFirmware      = "core:FirmwareRevision"
	overkizOperatingMode = "core:OperatingModeState"
)

// CozytouchLayouts tags devices by identity and place, sensors by their own
// identity and gateways by firmware and connectivity.
var CozytouchLayouts = map[string]pipeline.Layout{
	KindDevice: {
		Inherit: []string{model.AttrName, attrBuild, model.AttrID, model.AttrPlace},
		Own:     []string{model.AttrOperatingMode},
	},
	KindSensor: {
		TagPrefix: "sensor_",
		Inherit:   []string{model.AttrID, model.AttrName, attrWidget},
	},
	KindGateway: {
		Inherit: []string{model.AttrID, attrVersion, attrStatus},
	},
}

var errSessionExpired = errors.New("cozytouch: session expired")

var _ collector.Check = (*Cozytouch)(nil)

// Cozytouch polls the Overkiz end user API behind the Atlantic Cozytouch
// bridge.
type Cozytouch struct {
	log      *slog.Logger
	baseURL  string
	username string
	password string
	client   *http.Client
	loggedIn bool
}

func NewCozytouch(log *slog.Logger, cfg *config.CozytouchConfig, timeout time.Duration) (*Cozytouch, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	client := newHTTPClient(timeout)
	client.Jar = jar

	return &Cozytouch{
		log:      log,
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		username: cfg.Username,
		password: cfg.Password,
		client:   client,
	}, nil
}

func (c *Cozytouch) Name() string {
	return "cozytouch"
}

func (c *Cozytouch) Close() error {
	c.client.CloseIdleConnections()
	return nil
}

type overkizState struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

type overkizDevice struct {
	DeviceURL  string         `json:"deviceURL"`
	Label      string         `json:"label"`
	Widget     string         `json:"widget"`
	PlaceOID   string         `json:"placeOID"`
	Attributes []overkizState `json:"attributes"`
	States     []overkizState `json:"states"`
}

type overkizGateway struct {
	GatewayID    string `json:"gatewayId"`
	Alive        bool   `json:"alive"`
	Connectivity struct {
		Status          string `json:"status"`
		ProtocolVersion string `json:"protocolVersion"`
	} `json:"connectivity"`
}

type overkizPlace struct {
	OID       string         `json:"oid"`
	Label     string         `json:"label"`
	SubPlaces []overkizPlace `json:"subPlaces"`
}

type overkizSetup struct {
	Gateways  []overkizGateway `json:"gateways"`
	Devices   []overkizDevice  `json:"devices"`
	RootPlace overkizPlace     `json:"rootPlace"`
}

func (c *Cozytouch) Fetch(ctx context.Context) (*model.Snapshot, error) {
	if !c.loggedIn {
		if err := c.login(ctx); err != nil {
			return nil, err
		}
	}

	setup, err := c.getSetup(ctx)
	if errors.Is(err, errSessionExpired) {
		c.log.Debug("session expired, logging in again")
		if err := c.login(ctx); err != nil {
			return nil, err
		}
		setup, err = c.getSetup(ctx)
	}
	if err != nil {
		return nil, err
	}

	return buildCozytouchSnapshot(setup), nil
}

func (c *Cozytouch) login(ctx context.Context) error {
	form := url.Values{}
	form.Set("userId", c.username)
	form.Set("userPassword", c.password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/login", strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to login: %w", err)
	}
	defer resp.Body.Close()

	var result struct {
		Success bool `json:"success"`
	}
	if err := decodeBody(resp, &result); err != nil {
		return fmt.Errorf("login rejected: %w", err)
	}
	if !result.Success {
		return fmt.Errorf("login rejected for user %s", c.username)
	}

	c.loggedIn = true
	return nil
}

func (c *Cozytouch) getSetup(ctx context.Context) (*overkizSetup, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/setup", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		c.loggedIn = false
		return nil, errSessionExpired
	}

	var setup overkizSetup
	if err := decodeBody(resp, &setup); err != nil {
		return nil, err
	}
	return &setup, nil
}

func buildCozytouchSnapshot(setup *overkizSetup) *model.Snapshot {
	snapshot := model.NewSnapshot("cozytouch")
	places := placeLabels(setup.RootPlace, nil)

	for _, group := range groupDevices(setup.Devices) {
		parent := deviceEntity(group[0], KindDevice, places)
		for _, d := range group[1:] {
			parent.Children = append(parent.Children, deviceEntity(d, KindSensor, places))
		}
		snapshot.Entities = append(snapshot.Entities, parent)
	}

	for _, gw := range setup.Gateways {
		e := &model.Entity{
			ID:   gw.GatewayID,
			Kind: KindGateway,
		}
		if gw.Connectivity.ProtocolVersion != "" {
			e.SetAttr(attrVersion, gw.Connectivity.ProtocolVersion)
		}
		if gw.Connectivity.Status != "" {
			e.SetAttr(attrStatus, gw.Connectivity.Status)
		}
		e.AddState("gateway.is_on", model.BoolValue(gw.Alive))
		snapshot.Entities = append(snapshot.Entities, e)
	}

	return snapshot
}

func deviceEntity(d overkizDevice, kind string, places map[string]string) *model.Entity {
	e := &model.Entity{
		ID:   d.DeviceURL,
		Name: d.Label,
		Kind: kind,
	}

	if label, ok := places[d.PlaceOID]; ok {
		e.Place = model.Some(label)
	}
	if d.Widget != "" {
		e.SetAttr(attrWidget, d.Widget)
	}
	for _, a := range d.Attributes {
		if a.Name != overkizFirmware {
			continue
		}
		if v, ok := attrString(a.Value); ok {
			e.SetAttr(attrBuild, v)
		}
	}

	for _, s := range d.States {
		if s.Name == overkizOperatingMode {
			if mode, ok := s.Value.(string); ok {
				e.OperatingMode = model.Some(mode)
			}
		}
		e.AddState(s.Name, stateValue(s.Value))
	}

	return e
}

// groupDevices gathers devices sharing a URL base ("io://gw/123#1",
// "io://gw/123#2"). Groups keep the order of their first member and are
// sorted by URL index, so the first entry is the main device.
func groupDevices(devices []overkizDevice) [][]overkizDevice {
	var order []string
	groups := make(map[string][]overkizDevice)

	for _, d := range devices {
		base, _ := splitDeviceURL(d.DeviceURL)
		if _, ok := groups[base]; !ok {
			order = append(order, base)
		}
		groups[base] = append(groups[base], d)
	}

	result := make([][]overkizDevice, 0, len(order))
	for _, base := range order {
		group := groups[base]
		sort.SliceStable(group, func(i, j int) bool {
			_, a := splitDeviceURL(group[i].DeviceURL)
			_, b := splitDeviceURL(group[j].DeviceURL)
			return a < b
		})
		result = append(result, group)
	}
	return result
}

func splitDeviceURL(deviceURL string) (string, int) {
	base, idx, found := strings.Cut(deviceURL, "#")
	if !found {
		return base, 0
	}
	n, err := strconv.Atoi(idx)
	if err != nil {
		return base, 0
	}
	return base, n
}

func placeLabels(p overkizPlace, into map[string]string) map[string]string {
	if into == nil {
		into = make(map[string]string)
	}
	if p.OID != "" {
		into[p.OID] = p.Label
	}
	for _, sub := range p.SubPlaces {
		placeLabels(sub, into)
	}
	return into
}
