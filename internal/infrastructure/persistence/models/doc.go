// Package models contains GORM persistence models for the rental tables.
// Domain types stay free of ORM tags; repositories map between the two.
//
// Tables:
//   - properties, units, tenants: reference data read by the wizard
//   - rental_contracts: submitted contracts, read by the conflict guard
//   - rental_contract_cheques: cheque lines of a submitted contract
package models
