package sse

// SetEncoder replaces the snapshot encoder.
func (h *Handler) SetEncoder(f func(any) ([]byte, error)) { h.encode = f }
