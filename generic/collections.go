/*
collections.go - Collection registry and document codec

PURPOSE:
  The Entity Store persists one flat collection per record type, each record
  addressable by id. This file is the single registry of those collections
  and the codec every store uses to turn stored JSON documents back into a
  typed Snapshot.

HOW IT WORKS:
 1. Each Collection is registered with a decoder appending into a Snapshot field
 2. Stores keep documents as opaque JSON keyed by (collection, id)
 3. DecodeSnapshot replays documents in insertion order into a Snapshot
 4. MergePatch implements partial updates on a stored document

SEE ALSO:
  - store.go: EntityStore contract using these documents
  - store/memory.go and store/sqlite: implementations
*/
package generic

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Collection names a flat record collection.
type Collection string

const (
	CollAccounts          Collection = "accounts"
	CollCustomers         Collection = "customers"
	CollSuppliers         Collection = "suppliers"
	CollEmployees         Collection = "employees"
	CollFreightForwarders Collection = "freightForwarders"
	CollClearingAgents    Collection = "clearingAgents"
	CollCommissionAgents  Collection = "commissionAgents"
	CollItems             Collection = "items"
	CollOriginalTypes     Collection = "originalTypes"
	CollOriginalPurchases Collection = "originalPurchases"
	CollOriginalOpenings  Collection = "originalOpenings"
	CollProductions       Collection = "productions"
	CollSalesInvoices     Collection = "salesInvoices"
	CollJournalEntries    Collection = "journalEntries"
)

// =============================================================================
// COLLECTION REGISTRY
// =============================================================================

type decodeFunc func(s *Snapshot, body json.RawMessage) error

// into returns a decoder appending one T to the slice selected by field.
func into[T any](field func(*Snapshot) *[]T) decodeFunc {
	return func(s *Snapshot, body json.RawMessage) error {
		var rec T
		if err := json.Unmarshal(body, &rec); err != nil {
			return err
		}
		dst := field(s)
		*dst = append(*dst, rec)
		return nil
	}
}

var collectionRegistry = map[Collection]decodeFunc{
	CollAccounts:          into(func(s *Snapshot) *[]Account { return &s.Accounts }),
	CollCustomers:         into(func(s *Snapshot) *[]Party { return &s.Customers }),
	CollSuppliers:         into(func(s *Snapshot) *[]Party { return &s.Suppliers }),
	CollEmployees:         into(func(s *Snapshot) *[]Party { return &s.Employees }),
	CollFreightForwarders: into(func(s *Snapshot) *[]Party { return &s.FreightForwarders }),
	CollClearingAgents:    into(func(s *Snapshot) *[]Party { return &s.ClearingAgents }),
	CollCommissionAgents:  into(func(s *Snapshot) *[]Party { return &s.CommissionAgents }),
	CollItems:             into(func(s *Snapshot) *[]Item { return &s.Items }),
	CollOriginalTypes:     into(func(s *Snapshot) *[]OriginalType { return &s.OriginalTypes }),
	CollOriginalPurchases: into(func(s *Snapshot) *[]OriginalPurchase { return &s.OriginalPurchases }),
	CollOriginalOpenings:  into(func(s *Snapshot) *[]OriginalOpening { return &s.OriginalOpenings }),
	CollProductions:       into(func(s *Snapshot) *[]Production { return &s.Productions }),
	CollSalesInvoices:     into(func(s *Snapshot) *[]SalesInvoice { return &s.SalesInvoices }),
	CollJournalEntries:    into(func(s *Snapshot) *[]JournalEntry { return &s.JournalEntries }),
}

// collectionOrder fixes the order used by backups and snapshot decoding.
var collectionOrder = []Collection{
	CollAccounts, CollCustomers, CollSuppliers, CollEmployees,
	CollFreightForwarders, CollClearingAgents, CollCommissionAgents,
	CollItems, CollOriginalTypes, CollOriginalPurchases, CollOriginalOpenings,
	CollProductions, CollSalesInvoices, CollJournalEntries,
}

// TransactionalCollections are the collections a hard reset clears.
// Setup data (accounts, parties, items, types) is never listed here.
var TransactionalCollections = []Collection{
	CollJournalEntries, CollSalesInvoices, CollOriginalPurchases,
	CollOriginalOpenings, CollProductions,
}

// Collections returns every registered collection in stable order.
func Collections() []Collection {
	return append([]Collection(nil), collectionOrder...)
}

// Valid reports whether c is registered.
func (c Collection) Valid() bool {
	_, ok := collectionRegistry[c]
	return ok
}

// LookupCollection resolves a collection by name.
func LookupCollection(name string) (Collection, error) {
	c := Collection(name)
	if !c.Valid() {
		return "", fmt.Errorf("%w: %s", ErrUnknownCollection, name)
	}
	return c, nil
}

// =============================================================================
// DOCUMENTS
// =============================================================================

// Document is one stored record.
type Document struct {
	Collection Collection
	ID         string
	Body       json.RawMessage
}

// DecodeSnapshot builds a Snapshot from documents in insertion order.
func DecodeSnapshot(docs []Document, counters map[string]int64) (*Snapshot, error) {
	snap := &Snapshot{Counters: make(map[string]int64, len(counters))}
	for k, v := range counters {
		snap.Counters[k] = v
	}
	for _, doc := range docs {
		decode, ok := collectionRegistry[doc.Collection]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownCollection, doc.Collection)
		}
		if err := decode(snap, doc.Body); err != nil {
			return nil, fmt.Errorf("decode %s/%s: %w", doc.Collection, doc.ID, err)
		}
	}
	return snap, nil
}

// EncodeRecord marshals record and checks that its "id" field equals id.
func EncodeRecord(id string, record any) (json.RawMessage, error) {
	body, ok := record.(json.RawMessage)
	if !ok {
		var err error
		body, err = json.Marshal(record)
		if err != nil {
			return nil, err
		}
	}
	var head struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &head); err != nil {
		return nil, &ValidationError{Field: "record", Message: "record must be a JSON object"}
	}
	if head.ID != id {
		return nil, &ValidationError{Field: "id", Message: fmt.Sprintf("record id %q does not match %q", head.ID, id)}
	}
	return body, nil
}

// MergePatch overlays patch fields onto a stored document. The id is immutable.
func MergePatch(body json.RawMessage, patch map[string]any) (json.RawMessage, error) {
	var fields map[string]any
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&fields); err != nil {
		return nil, err
	}
	for k, v := range patch {
		if k == "id" {
			continue
		}
		fields[k] = v
	}
	return json.Marshal(fields)
}
