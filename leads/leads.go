// Package leads instantiates the list controller for the /leads/
// collection. Like customers, leads are admin-managed.
package leads

import (
	"strconv"

	"github.com/jrsteele09/go-crm-client/apiclient"
	"github.com/jrsteele09/go-crm-client/authz"
	"github.com/jrsteele09/go-crm-client/listview"
)

type Status string

const (
	StatusOpen Status = "Open"
	StatusWon  Status = "Won"
	StatusLost Status = "Lost"
)

// Decimal is a monetary value kept in its wire form. The API serializes
// decimals as strings to avoid float rounding; conversion happens only at
// display time.
type Decimal string

func (d Decimal) Float64() (float64, error) {
	if d == "" {
		return 0, nil
	}
	return strconv.ParseFloat(string(d), 64)
}

type Lead struct {
	ID       int64   `json:"id"`
	Title    string  `json:"title"`
	Customer int64   `json:"customer"`
	Value    Decimal `json:"value"`
	Status   Status  `json:"status"`
}

// Params is the create/update payload. Customer references an existing
// customer id.
type Params struct {
	Title    string  `json:"title"`
	Customer int64   `json:"customer"`
	Value    Decimal `json:"value"`
	Status   Status  `json:"status"`
}

const collectionPath = "/leads/"

// Definition describes the leads endpoint: paged, searchable, filterable by
// status (Open/Won/Lost), no ownership.
func Definition() listview.Definition[Lead] {
	return listview.Definition[Lead]{
		Resource:    authz.ResourceLead,
		Path:        collectionPath,
		SearchParam: "search",
		FilterParam: "status",
		ID:          func(l Lead) int64 { return l.ID },
	}
}

func NewController(api *apiclient.Client, policy *authz.Policy, options ...listview.Option[Lead]) (*listview.Controller[Lead], error) {
	return listview.New(Definition(), api, policy, options...)
}
