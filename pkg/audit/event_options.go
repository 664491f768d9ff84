package audit

// WithResource sets the resource type and ID.
func WithResource(resource, id string) EventOption {
	return func(e *Event) {
		e.Resource = resource
		e.ResourceID = id
	}
}

// WithMetadata adds metadata to the event.
func WithMetadata(key string, value any) EventOption {
	return func(e *Event) {
		if e.Metadata == nil {
			e.Metadata = make(map[string]any)
		}
		e.Metadata[key] = value
	}
}

// WithResult overrides the event result.
func WithResult(result Result) EventOption {
	return func(e *Event) {
		e.Result = result
	}
}

// WithTenantID sets the tenant explicitly. Webhook deliveries carry no tenant
// in their request context, so the reconciler sets it from the ledger row.
func WithTenantID(id string) EventOption {
	return func(e *Event) {
		e.TenantID = id
	}
}

// WithActor sets who performed the action, e.g. "admin" or "gateway".
func WithActor(actor string) EventOption {
	return func(e *Event) {
		e.ActorID = actor
	}
}
