package engine

import "hvacsched/internal/model"

// Export returns the schedule set in the export layout: the schedules plus
// metadata carrying the version, the export time and the schedule count.
func (e *Engine) Export() model.Document {
	doc := e.Document()
	doc.Metadata = model.Metadata{
		Version:    model.DocumentVersion,
		CreatedAt:  doc.Metadata.CreatedAt,
		ExportedAt: e.stamp(),
		Total:      len(doc.Schedules),
	}
	return doc
}

// importSchedules validates a whole batch with the same rules as create,
// then checks the imported schedules against each other. Nothing is
// replaced unless every schedule passes; all failures are reported by
// position. The current default schedule is kept when the batch has none.
func (e *Engine) importSchedules(doc *model.Document, c Import) (Result, error) {
	var (
		problems []ItemError
		accepted []model.Schedule
		def      *model.Schedule
		seen     = make(map[string]bool)
		now      = e.stamp()
	)

	for i, raw := range c.Schedules {
		s := Normalize(raw)
		if s.ID == "" {
			s.ID = e.newID()
		}
		if seen[s.ID] {
			problems = append(problems, ItemError{Index: i, Err: invalid("id", "duplicate id %q", s.ID)})
			continue
		}
		seen[s.ID] = true
		if s.CreatedAt == "" {
			s.CreatedAt = now
		}
		s.UpdatedAt = now

		if s.IsDefault {
			if def != nil {
				problems = append(problems, ItemError{Index: i, Err: invalid("is_default", "more than one default schedule")})
				continue
			}
			if err := Validate(s); err != nil {
				problems = append(problems, ItemError{Index: i, Err: err})
				continue
			}
			def = &s
			continue
		}

		if err := e.check(s, accepted, ""); err != nil {
			problems = append(problems, ItemError{Index: i, Err: err})
			continue
		}
		accepted = append(accepted, s)
	}

	if len(problems) > 0 {
		return Result{}, &BatchError{Items: problems}
	}

	if def == nil {
		kept := model.DefaultSchedule()
		for _, s := range doc.Schedules {
			if s.IsDefault {
				kept = s.Clone()
				break
			}
		}
		if seen[kept.ID] {
			return Result{}, invalid("id", "%q is the id of the default schedule", kept.ID)
		}
		def = &kept
	}

	doc.Schedules = append([]model.Schedule{*def}, accepted...)
	return Result{Changed: doc.Schedules}, nil
}
