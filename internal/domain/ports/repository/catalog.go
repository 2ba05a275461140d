package repository

import "oracle-bot/internal/domain/model"

// ServiceCatalog is the read-only service table loaded at startup.
type ServiceCatalog interface {
	Lookup(code string) (model.ServiceDescriptor, bool)
	List() []model.ServiceDescriptor
}
