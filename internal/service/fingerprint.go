package service

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"invcore/internal/dto"
)

// Operation fingerprints bind an external_id to the semantic inputs it was
// first used with: a replay with the same key and fingerprint returns the
// stored outcome, a replay with a different fingerprint is a conflict.

func fingerprintCreate(req dto.CreateItemRequest) string {
	active := true
	if req.Active != nil {
		active = *req.Active
	}
	cost := ""
	if req.Cost != nil {
		cost = req.Cost.String()
	}
	return fingerprint("create",
		req.SKU, req.Name, req.Unit,
		strptr(req.Category), fmt.Sprint(req.ReorderThreshold),
		cost, strptr(req.Currency), strptr(req.Description),
		fmt.Sprint(active),
	)
}

func fingerprintAdjust(sku string, req dto.AdjustStockRequest) string {
	return fingerprint("adjust", sku, fmt.Sprint(req.Delta), req.Reason)
}

func fingerprint(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "\x1f")))
	return hex.EncodeToString(sum[:])
}

func strptr(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
