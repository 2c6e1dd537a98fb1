package repository

import (
	"gorm.io/datatypes"

	"github.com/nurpe/jobshare/internal/model"
)

func partnerSlice(partners []model.PartnerEntry) datatypes.JSONSlice[model.PartnerEntry] {
	if partners == nil {
		partners = []model.PartnerEntry{}
	}
	return datatypes.JSONSlice[model.PartnerEntry](partners)
}

func stringSlice(values []string) datatypes.JSONSlice[string] {
	if values == nil {
		values = []string{}
	}
	return datatypes.JSONSlice[string](values)
}
