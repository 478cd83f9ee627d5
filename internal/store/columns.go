package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/valentindosimont/spoolmanager/internal/spool"
)

// Column order shared by SELECT, INSERT and UPDATE. databaseId, created and
// version are handled separately on write.
var writableColumns = []string{
	"updated", "originator", "isActive", "isTemplate", "displayName", "vendor",
	"totalWeightInGram", "spoolWeightInGram", "usedWeightInGram", "remainingWeightInGram",
	"totalLengthInMM", "usedLengthInMM", "BarOrQRcode", "firstUse", "lastUse",
	"purchasedFrom", "purchasedOn", "cost", "costUnit", "labels",
	"noteText", "noteDeltaFormat", "noteHtml",
	"material", "materialCharacteristic", "density", "diameter", "diameterTolerance",
	"colorName", "color", "flowRateCompensation",
	"temperature", "bedTemperature", "enclosureTemperature",
	"offsetTemperature", "offsetBedTemperature", "offsetEnclosureTemperature",
}

var spoolColumns = "databaseId, created, version, " + strings.Join(writableColumns, ", ")

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSpool(row rowScanner) (*spool.Spool, error) {
	var (
		sp                                         spool.Spool
		version                                    sql.NullInt64
		originator, displayName, vendor, code      sql.NullString
		purchasedFrom, costUnit, labels            sql.NullString
		noteText, noteDelta, noteHTML              sql.NullString
		material, characteristic, colorName, color sql.NullString
		isActive, isTemplate                       sql.NullBool
		totalW, spoolW, usedW, remainingW, cost    sql.NullFloat64
		density, diameter, tolerance               sql.NullFloat64
		totalLen, usedLen, flow                    sql.NullInt64
		temp, bedTemp, encTemp                     sql.NullInt64
		offTemp, offBedTemp, offEncTemp            sql.NullInt64
		firstUse, lastUse, purchasedOn             sql.NullTime
	)

	err := row.Scan(
		&sp.ID, &sp.Created, &version,
		&sp.Updated, &originator, &isActive, &isTemplate, &displayName, &vendor,
		&totalW, &spoolW, &usedW, &remainingW,
		&totalLen, &usedLen, &code, &firstUse, &lastUse,
		&purchasedFrom, &purchasedOn, &cost, &costUnit, &labels,
		&noteText, &noteDelta, &noteHTML,
		&material, &characteristic, &density, &diameter, &tolerance,
		&colorName, &color, &flow,
		&temp, &bedTemp, &encTemp,
		&offTemp, &offBedTemp, &offEncTemp,
	)
	if err != nil {
		return nil, err
	}

	if version.Valid {
		sp.Version = spool.Ptr(int(version.Int64))
	}
	sp.Originator = originator.String
	sp.IsActive = boolPtr(isActive)
	sp.IsTemplate = boolPtr(isTemplate)
	sp.DisplayName = displayName.String
	sp.Vendor = vendor.String
	sp.TotalWeight = floatPtr(totalW)
	sp.SpoolWeight = floatPtr(spoolW)
	sp.UsedWeight = floatPtr(usedW)
	sp.RemainingWeight = floatPtr(remainingW)
	sp.TotalLength = intPtr(totalLen)
	sp.UsedLength = intPtr(usedLen)
	sp.Code = code.String
	sp.FirstUse = timePtr(firstUse)
	sp.LastUse = timePtr(lastUse)
	sp.PurchasedFrom = purchasedFrom.String
	sp.PurchasedOn = timePtr(purchasedOn)
	sp.Cost = floatPtr(cost)
	sp.CostUnit = costUnit.String
	sp.NoteText = noteText.String
	sp.NoteDeltaFormat = noteDelta.String
	sp.NoteHTML = noteHTML.String
	sp.Material = material.String
	sp.MaterialCharacteristic = characteristic.String
	sp.Density = floatPtr(density)
	sp.Diameter = floatPtr(diameter)
	sp.DiameterTolerance = floatPtr(tolerance)
	sp.ColorName = colorName.String
	sp.Color = color.String
	sp.FlowRateCompensation = intPtr(flow)
	sp.Temperature = intPtr(temp)
	sp.BedTemperature = intPtr(bedTemp)
	sp.EnclosureTemperature = intPtr(encTemp)
	sp.OffsetTemperature = intPtr(offTemp)
	sp.OffsetBedTemperature = intPtr(offBedTemp)
	sp.OffsetEnclosureTemperature = intPtr(offEncTemp)

	if labels.Valid && labels.String != "" {
		if err := json.Unmarshal([]byte(labels.String), &sp.Labels); err != nil {
			return nil, fmt.Errorf("decode labels of spool %d: %w", sp.ID, err)
		}
	}

	return &sp, nil
}

// writableValues returns the values for writableColumns, in order.
func writableValues(sp *spool.Spool, updated time.Time) ([]any, error) {
	var labels sql.NullString
	if len(sp.Labels) > 0 {
		data, err := json.Marshal(sp.Labels)
		if err != nil {
			return nil, fmt.Errorf("encode labels: %w", err)
		}
		labels = nullString(string(data))
	}

	return []any{
		updated, nullString(sp.Originator), nullBool(sp.IsActive), nullBool(sp.IsTemplate), sp.DisplayName, sp.Vendor,
		nullFloat(sp.TotalWeight), nullFloat(sp.SpoolWeight), nullFloat(sp.UsedWeight),
		nullFloat(spool.RemainingWeight(sp.UsedWeight, sp.TotalWeight)),
		nullInt(sp.TotalLength), nullInt(sp.UsedLength), nullString(sp.Code), nullTime(sp.FirstUse), nullTime(sp.LastUse),
		nullString(sp.PurchasedFrom), nullTime(sp.PurchasedOn), nullFloat(sp.Cost), nullString(sp.CostUnit), labels,
		nullString(sp.NoteText), nullString(sp.NoteDeltaFormat), nullString(sp.NoteHTML),
		sp.Material, nullString(sp.MaterialCharacteristic), nullFloat(sp.Density), nullFloat(sp.Diameter),
		nullFloat(sp.DiameterTolerance), nullString(sp.ColorName), nullString(sp.Color), nullInt(sp.FlowRateCompensation),
		nullInt(sp.Temperature), nullInt(sp.BedTemperature), nullInt(sp.EnclosureTemperature),
		nullInt(sp.OffsetTemperature), nullInt(sp.OffsetBedTemperature), nullInt(sp.OffsetEnclosureTemperature),
	}, nil
}

func insertSpool(ctx context.Context, tx *sql.Tx, sp *spool.Spool, now time.Time) error {
	values, err := writableValues(sp, now)
	if err != nil {
		return err
	}
	created := sp.Created
	if created.IsZero() {
		created = now
	}
	args := append([]any{created, 1}, values...)

	res, err := tx.ExecContext(ctx, `INSERT INTO spo_spoolmodel (created, version, `+
		strings.Join(writableColumns, ", ")+`) VALUES (`+placeholders(len(args))+`)`, args...)
	if err != nil {
		return fmt.Errorf("insert spool: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert spool id: %w", err)
	}

	sp.ID = id
	sp.Created = created
	sp.Updated = now
	sp.Version = spool.Ptr(1)
	sp.RemainingWeight = spool.RemainingWeight(sp.UsedWeight, sp.TotalWeight)
	return nil
}

func updateSpool(ctx context.Context, tx *sql.Tx, sp *spool.Spool, newVersion int, now time.Time) error {
	values, err := writableValues(sp, now)
	if err != nil {
		return err
	}
	sets := make([]string, 0, len(writableColumns)+1)
	sets = append(sets, "version = ?")
	for _, col := range writableColumns {
		sets = append(sets, col+" = ?")
	}
	args := append([]any{newVersion}, values...)
	args = append(args, sp.ID)

	if _, err := tx.ExecContext(ctx, `UPDATE spo_spoolmodel SET `+strings.Join(sets, ", ")+
		` WHERE databaseId = ?`, args...); err != nil {
		return fmt.Errorf("update spool %d: %w", sp.ID, err)
	}

	sp.Updated = now
	sp.Version = spool.Ptr(newVersion)
	sp.RemainingWeight = spool.RemainingWeight(sp.UsedWeight, sp.TotalWeight)
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullBool(p *bool) sql.NullBool {
	if p == nil {
		return sql.NullBool{}
	}
	return sql.NullBool{Bool: *p, Valid: true}
}

func nullFloat(p *float64) sql.NullFloat64 {
	if p == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *p, Valid: true}
}

func nullInt(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

func nullTime(p *time.Time) sql.NullTime {
	if p == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *p, Valid: true}
}

func boolPtr(v sql.NullBool) *bool {
	if !v.Valid {
		return nil
	}
	return spool.Ptr(v.Bool)
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	return spool.Ptr(v.Float64)
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	return spool.Ptr(int(v.Int64))
}

func timePtr(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	return spool.Ptr(v.Time)
}
