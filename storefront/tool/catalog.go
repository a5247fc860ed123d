// Package tool answers the shopping assistant's tool calls against the
// session's search and cart state.
package tool

import (
	"github.com/cloudwego/eino/schema"
	"github.com/tanpawarit/atelier-storefront/storefront/contract"
)

// Infos describes the client-side tools the assistant may call.
func Infos() []*schema.ToolInfo {
	return []*schema.ToolInfo{
		{
			Name: string(contract.ToolSearch),
			Desc: "Search the product catalog and show the results to the shopper.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"query": {Type: schema.String, Desc: "Free-text product query", Required: true},
			}),
		},
		{
			Name:        string(contract.ToolViewCart),
			Desc:        "Read the shopper's cart: line items, item count and total price.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{}),
		},
		{
			Name: string(contract.ToolAddToCart),
			Desc: "Add a product to the shopper's cart.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"objectID": {Type: schema.String, Desc: "Product identifier", Required: true},
				"quantity": {Type: schema.Integer, Desc: "Units to add, defaults to 1"},
				"item": {
					Type: schema.Object,
					Desc: "Product card shown to the shopper",
					SubParams: map[string]*schema.ParameterInfo{
						"objectID": {Type: schema.String, Required: true},
						"name":     {Type: schema.String},
						"price":    {Type: schema.Number},
						"brand":    {Type: schema.String},
						"image":    {Type: schema.String},
					},
				},
			}),
		},
	}
}
