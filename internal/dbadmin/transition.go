package dbadmin

import "slices"

// Apply returns the state that results from applying in to s. It never
// mutates s; every slice it changes is rebuilt.
func Apply(s State, in Intent) State {
	return State{
		Registry:       reduceRegistry(s.Registry, in),
		Draft:          reduceDraft(s.Draft, in),
		FormResult:     reduceFormResult(s.FormResult, in),
		PendingAdds:    reducePendingAdds(s.PendingAdds, in),
		PendingDeletes: reducePendingDeletes(s.PendingDeletes, in),
	}
}

func reduceRegistry(registry []DatabaseRecord, in Intent) []DatabaseRecord {
	switch in := in.(type) {
	case FetchCompleted:
		return cloneRecords(in.Records)
	case SampleAdded:
		out := make([]DatabaseRecord, 0, len(registry)+1)
		out = append(out, registry...)
		return append(out, in.Record.Clone())
	case SaveCompleted:
		// A confirmed create the refreshed list did not include stays visible.
		if !in.creating() || in.Err != nil || in.Saved == nil || !in.Saved.Persisted() {
			return registry
		}
		if slices.ContainsFunc(registry, func(r DatabaseRecord) bool { return r.ID == in.Saved.ID }) {
			return registry
		}
		out := make([]DatabaseRecord, 0, len(registry)+1)
		out = append(out, registry...)
		return append(out, in.Saved.Clone())
	case DeleteCompleted:
		if registry == nil {
			return nil
		}
		out := make([]DatabaseRecord, 0, len(registry))
		for _, r := range registry {
			if r.ID != in.ID {
				out = append(out, r)
			}
		}
		return out
	}
	return registry
}

func reduceDraft(draft *DatabaseRecord, in Intent) *DatabaseRecord {
	switch in := in.(type) {
	case Reset, DeleteCompleted:
		return nil
	case DraftInitialized:
		d := in.Draft.Clone()
		return &d
	case EngineSelected:
		if draft == nil {
			return nil
		}
		d := draft.Clone()
		d.Engine = in.Engine
		return &d
	case SaveCompleted:
		d := in.Submitted.Clone()
		if in.Saved != nil {
			d = in.Saved.Clone()
		}
		return &d
	case SaveRejected:
		d := in.Submitted.Clone()
		return &d
	}
	return draft
}

func reduceFormResult(form FormResult, in Intent) FormResult {
	switch in := in.(type) {
	case Reset:
		return FormResult{}
	case DraftInitialized:
		return FormResult{}
	case SampleFailed:
		return FormResult{Error: in.Err}
	case SaveRejected:
		return FormResult{Error: in.Err}
	case SaveCompleted:
		if in.Err != nil {
			return FormResult{Error: in.Err}
		}
		return FormResult{Success: &FormSuccess{Message: SaveSuccessMessage}}
	}
	return form
}

func reducePendingAdds(adds []DatabaseRecord, in Intent) []DatabaseRecord {
	switch in := in.(type) {
	case AddStarted:
		out := make([]DatabaseRecord, 0, len(adds)+1)
		out = append(out, adds...)
		return append(out, in.Draft.Clone())
	case SaveCompleted:
		if !in.creating() {
			return adds
		}
		// Pending entries have no id yet; match on the confirmed name first,
		// then on the submitted one in case the server normalized it.
		if in.Saved != nil {
			if i := indexByName(adds, in.Saved.Name); i >= 0 {
				return slices.Delete(slices.Clone(adds), i, i+1)
			}
		}
		if i := indexByName(adds, in.Submitted.Name); i >= 0 {
			return slices.Delete(slices.Clone(adds), i, i+1)
		}
	}
	return adds
}

func reducePendingDeletes(deletes []int64, in Intent) []int64 {
	switch in := in.(type) {
	case DeleteStarted:
		if slices.Contains(deletes, in.ID) {
			return deletes
		}
		out := make([]int64, 0, len(deletes)+1)
		out = append(out, deletes...)
		return append(out, in.ID)
	case DeleteCompleted:
		return removeID(deletes, in.ID)
	case DeleteFailed:
		return removeID(deletes, in.ID)
	}
	return deletes
}

func indexByName(records []DatabaseRecord, name string) int {
	return slices.IndexFunc(records, func(r DatabaseRecord) bool { return r.Name == name })
}

func removeID(ids []int64, id int64) []int64 {
	if !slices.Contains(ids, id) {
		return ids
	}
	out := make([]int64, 0, len(ids))
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
