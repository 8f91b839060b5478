package contracts

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/roach88/forkbench/internal/ledger"
	"github.com/roach88/forkbench/internal/simchain"
	"github.com/roach88/forkbench/internal/units"
)

const (
	keyPropertiesToken = "properties:token"
	keyPropertiesCount = "properties:count"
)

func propertyKey(id uint64) string { return fmt.Sprintf("properties:item:%d", id) }

// Property is a marketplace listing. Price is in raw token units.
type Property struct {
	ID       uint64         `json:"id"`
	Owner    common.Address `json:"owner"`
	Price    string         `json:"price"`
	PropType string         `json:"propType"`
	Category string         `json:"category"`
	Warranty string         `json:"warranty"`
	IsListed bool           `json:"isListed"`
}

// PriceUnits returns the price as a quantity.
func (p Property) PriceUnits() *big.Int {
	v, _ := new(big.Int).SetString(p.Price, 10)
	return v
}

// CanonicalValue implements canon.Valuer.
func (p Property) CanonicalValue() any {
	return map[string]any{
		"id":       p.ID,
		"owner":    p.Owner,
		"price":    p.Price,
		"propType": p.PropType,
		"category": p.Category,
		"warranty": p.Warranty,
		"isListed": p.IsListed,
	}
}

// Properties is a marketplace where listed properties are bought with an
// 18-decimal ERC20. createProperty takes the price in whole tokens; ids
// start at 1 and deleted ids are never reused.
//
// Constructor argument: the payment token address.
type Properties struct {
	handlers map[ledger.Operation]simchain.Handler
}

// NewProperties returns a marketplace contract.
func NewProperties() *Properties {
	p := &Properties{}
	p.handlers = map[ledger.Operation]simchain.Handler{
		ledger.OpCreateProperty: p.create,
		ledger.OpGetProperty:    p.get,
		ledger.OpListProperty:   p.setListed(true),
		ledger.OpUnlistProperty: p.setListed(false),
		ledger.OpDeleteProperty: p.delete,
		ledger.OpBuyProperty:    p.buy,
		ledger.OpClaimFaucet:    faucet(keyPropertiesToken),
	}
	return p
}

// Kind implements simchain.Contract.
func (p *Properties) Kind() string { return "properties" }

// Handlers implements simchain.Contract.
func (p *Properties) Handlers() map[ledger.Operation]simchain.Handler { return p.handlers }

// Init implements simchain.Initializer.
func (p *Properties) Init(env *simchain.Env, args []any) error {
	token, err := tokenArg("properties", args)
	if err != nil {
		return err
	}
	return env.PutAddress(keyPropertiesToken, token)
}

func (p *Properties) load(env *simchain.Env, id *big.Int) (Property, error) {
	var prop Property
	if !id.IsUint64() || id.Sign() == 0 {
		return prop, simchain.Reverted("Property not found")
	}
	ok, err := env.GetJSON(propertyKey(id.Uint64()), &prop)
	if err != nil {
		return prop, err
	}
	if !ok {
		return prop, simchain.Reverted("Property not found")
	}
	return prop, nil
}

func (p *Properties) loadOwned(env *simchain.Env, id *big.Int) (Property, error) {
	prop, err := p.load(env, id)
	if err != nil {
		return prop, err
	}
	return prop, simchain.Require(prop.Owner == env.Caller(), "Not owner of this property")
}

func (p *Properties) create(env *simchain.Env, args []any) ([]any, error) {
	count, err := env.GetUint(keyPropertiesCount)
	if err != nil {
		return nil, err
	}
	id := count + 1
	price := new(big.Int).Mul(args[0].(*big.Int), units.Pow10(18))
	prop := Property{
		ID:       id,
		Owner:    env.Caller(),
		Price:    price.String(),
		PropType: args[1].(string),
		Category: args[2].(string),
		Warranty: args[3].(*big.Int).String(),
	}
	if err := env.PutJSON(propertyKey(id), prop); err != nil {
		return nil, err
	}
	if err := env.PutUint(keyPropertiesCount, id); err != nil {
		return nil, err
	}
	env.Emit("PropertyCreated", map[string]any{"id": id, "owner": prop.Owner, "price": price})
	return []any{new(big.Int).SetUint64(id)}, nil
}

func (p *Properties) get(env *simchain.Env, args []any) ([]any, error) {
	prop, err := p.load(env, args[0].(*big.Int))
	if err != nil {
		return nil, err
	}
	return []any{prop}, nil
}

func (p *Properties) setListed(listed bool) simchain.Handler {
	return func(env *simchain.Env, args []any) ([]any, error) {
		prop, err := p.loadOwned(env, args[0].(*big.Int))
		if err != nil {
			return nil, err
		}
		prop.IsListed = listed
		if err := env.PutJSON(propertyKey(prop.ID), prop); err != nil {
			return nil, err
		}
		name := "PropertyUnlisted"
		if listed {
			name = "PropertyListed"
		}
		env.Emit(name, map[string]any{"id": prop.ID})
		return nil, nil
	}
}

func (p *Properties) delete(env *simchain.Env, args []any) ([]any, error) {
	prop, err := p.loadOwned(env, args[0].(*big.Int))
	if err != nil {
		return nil, err
	}
	if err := env.Delete(propertyKey(prop.ID)); err != nil {
		return nil, err
	}
	env.Emit("PropertyDeleted", map[string]any{"id": prop.ID})
	return nil, nil
}

func (p *Properties) buy(env *simchain.Env, args []any) ([]any, error) {
	prop, err := p.load(env, args[0].(*big.Int))
	if err != nil {
		return nil, err
	}
	if err := simchain.Require(prop.IsListed, "Property not listed"); err != nil {
		return nil, err
	}
	if err := simchain.Require(prop.Owner != env.Caller(), "Cannot buy own property"); err != nil {
		return nil, err
	}
	token, err := env.GetAddress(keyPropertiesToken)
	if err != nil {
		return nil, err
	}
	price := prop.PriceUnits()
	if _, err := env.Call(token, ledger.OpTransferFrom, env.Caller(), prop.Owner, price); err != nil {
		return nil, err
	}

	seller := prop.Owner
	prop.Owner = env.Caller()
	prop.IsListed = false
	if err := env.PutJSON(propertyKey(prop.ID), prop); err != nil {
		return nil, err
	}
	env.Emit("PropertySold", map[string]any{"id": prop.ID, "seller": seller, "buyer": prop.Owner, "price": price})
	return nil, nil
}
