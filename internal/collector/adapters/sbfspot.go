package adapters

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/speedwagon-io/homechecks/internal/collector"
	"github.com/speedwagon-io/homechecks/internal/config"
	"github.com/speedwagon-io/homechecks/internal/model"
	"github.com/speedwagon-io/homechecks/internal/pipeline"
)

const KindInverter = "inverter"

const (
	attrSerial    = "sn"
	attrType      = "type"
	attrSWVersion = "sw_version"
	attrGridRelay = "grid_relay"
)

var SBFspotLayouts = map[string]pipeline.Layout{
	KindInverter: {
		TagPrefix: "inverter_",
		Inherit:   []string{attrSerial, model.AttrName, attrType, attrSWVersion, attrStatus, attrGridRelay},
	},
}

// spotFields are vwSpotData columns reported on every cycle.
var spotFields = []string{
	"Pdc1", "Pdc2", "Idc1", "Idc2", "Udc1", "Udc2",
	"Pac1", "Pac2", "Pac3", "Iac1", "Iac2", "Iac3", "Uac1", "Uac2", "Uac3",
	"PdcTot", "PacTot",
}

type row map[string]any

var _ collector.Check = (*SBFspot)(nil)

// SBFspot reads the SQLite database written by SBFspot
// (https://github.com/SBFspot/SBFspot). The database is opened read-only.
type SBFspot struct {
	log *slog.Logger
	db  *sql.DB
}

func NewSBFspot(log *slog.Logger, cfg *config.SBFspotConfig) (*SBFspot, error) {
	dsn := fmt.Sprintf("file:%s?mode=ro&cache=private", cfg.Path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	return &SBFspot{log: log, db: db}, nil
}

func (s *SBFspot) Name() string {
	return "sbfspot"
}

func (s *SBFspot) Close() error {
	return s.db.Close()
}

func (s *SBFspot) Fetch(ctx context.Context) (*model.Snapshot, error) {
	inverters, err := queryRows(ctx, s.db, `SELECT * FROM "main"."Inverters"`)
	if err != nil {
		return nil, fmt.Errorf("failed to query inverters: %w", err)
	}

	snapshot := model.NewSnapshot("sbfspot")
	for _, inv := range inverters {
		spot, err := queryRows(ctx, s.db,
			`SELECT * FROM "main"."vwSpotData" WHERE Serial = ? ORDER BY TimeStamp DESC LIMIT 1`,
			inv["Serial"],
		)
		if err != nil {
			return nil, fmt.Errorf("failed to query spot data: %w", err)
		}

		var latest row
		if len(spot) > 0 {
			latest = spot[0]
		}
		snapshot.Entities = append(snapshot.Entities, inverterEntity(inv, latest))
	}

	return snapshot, nil
}

func inverterEntity(inv, spot row) *model.Entity {
	e := &model.Entity{Kind: KindInverter}
	e.ID, _ = attrString(inv["Serial"])
	e.Name, _ = attrString(inv["Name"])

	e.SetAttr(attrSerial, e.ID)
	setAttrFrom(e, attrType, inv["Type"], false)
	setAttrFrom(e, attrSWVersion, inv["SW_Version"], false)
	setAttrFrom(e, attrStatus, inv["Status"], true)
	setAttrFrom(e, attrGridRelay, inv["GridRelay"], true)

	if spot == nil {
		return e
	}

	for _, f := range spotFields {
		e.AddState(strings.ToLower(f), stateValue(spot[f]))
	}

	signal, _ := stateValue(spot["BT_Signal"]).AsFloat()
	running := signal > 0
	e.AddState("running", model.BoolValue(running))
	e.AddState("bt_signal", stateValue(spot["BT_Signal"]))

	if !running {
		return e
	}

	e.AddState("timestamp", stateValue(inv["TimeStamp"]))
	e.AddState("total_pac", stateValue(inv["TotalPac"]))
	e.AddCounter("pac", stateValue(inv["TotalPac"]))
	e.AddState("energy_today", stateValue(inv["EToday"]))
	e.AddState("energy_total", stateValue(inv["ETotal"]))
	e.AddCounter("energy", stateValue(inv["ETotal"]))
	e.AddState("operating_time", stateValue(inv["OperatingTime"]))
	e.AddState("feed_in_time", stateValue(inv["FeedInTime"]))
	e.AddState("temperature", stateValue(inv["Temperature"]))
	e.AddState("efficiency", stateValue(spot["Efficiency"]))

	return e
}

func setAttrFrom(e *model.Entity, key string, raw any, lower bool) {
	v, ok := attrString(raw)
	if !ok {
		return
	}
	if lower {
		v = strings.ToLower(v)
	}
	e.SetAttr(key, v)
}

func queryRows(ctx context.Context, db *sql.DB, query string, args ...any) ([]row, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var result []row
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}

		r := make(row, len(cols))
		for i, c := range cols {
			r[c] = values[i]
		}
		result = append(result, r)
	}

	return result, rows.Err()
}
