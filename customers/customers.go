// Package customers instantiates the list controller for the /customers/
// collection. Customers are admin-managed: regular users can browse but
// never create or modify them.
package customers

import (
	"github.com/jrsteele09/go-crm-client/apiclient"
	"github.com/jrsteele09/go-crm-client/authz"
	"github.com/jrsteele09/go-crm-client/listview"
)

type Status string

const (
	StatusActive   Status = "Active"
	StatusInactive Status = "Inactive"
)

type Customer struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Company string `json:"company"`
	Status  Status `json:"status"`
}

// Params is the create/update payload.
type Params struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Company string `json:"company"`
	Status  Status `json:"status"`
}

const collectionPath = "/customers/"

// Definition describes the customers endpoint to the generic controller:
// paged, searchable, no status filter parameter, no ownership.
func Definition() listview.Definition[Customer] {
	return listview.Definition[Customer]{
		Resource:    authz.ResourceCustomer,
		Path:        collectionPath,
		SearchParam: "search",
		ID:          func(c Customer) int64 { return c.ID },
	}
}

func NewController(api *apiclient.Client, policy *authz.Policy, options ...listview.Option[Customer]) (*listview.Controller[Customer], error) {
	return listview.New(Definition(), api, policy, options...)
}
