package appraisal

import "go.uber.org/zap"

// ExtractDeductions derives appraisal_deductions rows from the legacy
// amount/description columns. ids maps a row's reference to the
// vehicle_appraisal_id assigned by the database; rows whose reference is not
// in ids are skipped.
//
// A rule yields a deduction when its amount parses or its description is
// non-blank. A missing amount is written as 0 and a blank description as the
// rule's label.
func ExtractDeductions(rows []SourceRow, ids map[int64]int64) []Deduction {
	log := zap.L().With(zap.String("component", "appraisal.deductions"))

	var (
		out      []Deduction
		unmapped int
	)
	for _, row := range rows {
		ref, ok := row.Reference()
		if !ok {
			unmapped++
			continue
		}
		parentID, ok := ids[ref]
		if !ok {
			unmapped++
			continue
		}

		for _, rule := range deductionRules {
			var (
				amount    float64
				hasAmount bool
			)
			if rule.AmountColumn != "" {
				amount, hasAmount = NormalizeFloat(row[rule.AmountColumn])
			}
			desc := NormalizeText(row[rule.DescriptionColumn])

			if !hasAmount && desc == "" {
				continue
			}
			if desc == "" {
				desc = rule.Label
			}
			out = append(out, Deduction{
				ParentID:    parentID,
				Reference:   ref,
				Amount:      amount,
				Description: desc,
			})
		}
	}

	log.Info("deductions extracted",
		zap.Int("rows", len(rows)),
		zap.Int("rows_without_parent", unmapped),
		zap.Int("deductions", len(out)),
	)
	return out
}
