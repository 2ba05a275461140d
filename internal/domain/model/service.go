package model

import "fmt"

// ServiceDescriptor is one sellable reading in the catalog.
// Code matches the payment processor's product code.
type ServiceDescriptor struct {
	Code                string `yaml:"code" json:"code" validate:"required,alphanum,max=32"`
	DisplayName         string `yaml:"display_name" json:"display_name" validate:"required,max=64"`
	Price               int64  `yaml:"price" json:"price" validate:"gte=0"` // minor units
	Currency            string `yaml:"currency" json:"currency" validate:"required,len=3,uppercase"`
	InstructionTemplate string `yaml:"instruction" json:"instruction" validate:"required"`
}

// PriceLabel renders the price as "12.50 USD".
func (d ServiceDescriptor) PriceLabel() string {
	return fmt.Sprintf("%d.%02d %s", d.Price/100, d.Price%100, d.Currency)
}
