// README: Request binding; validator field errors are reported under their JSON names.
package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"truckmatch/internal/types"
)

const validationFailedMsg = "Validation failed"

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(jsonName)
	}
}

func jsonName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	if name == "-" {
		return ""
	}
	return name
}

// bindJSON decodes and validates the body, writing a 400 on failure.
func bindJSON(c *gin.Context, dst any) bool {
	err := c.ShouldBindJSON(dst)
	if err == nil {
		return true
	}
	var fields validator.ValidationErrors
	if errors.As(err, &fields) {
		problems := make([]string, 0, len(fields))
		for _, fe := range fields {
			problems = append(problems, fieldMessage(fe))
		}
		writeJSON(c, http.StatusBadRequest, errorResponse{Error: validationFailedMsg, Errors: problems})
		return false
	}
	writeError(c, http.StatusBadRequest, "invalid json")
	return false
}

// fieldPath drops the request struct name: createTripReq.origin.coordinates.lat -> origin.coordinates.lat.
func fieldPath(fe validator.FieldError) string {
	if _, rest, ok := strings.Cut(fe.Namespace(), "."); ok {
		return rest
	}
	return fe.Field()
}

func fieldMessage(fe validator.FieldError) string {
	name := fieldPath(fe)
	switch fe.Tag() {
	case "required", "required_if", "required_without":
		return name + " is required"
	case "uuid":
		return name + " must be a valid id"
	case "oneof":
		return fmt.Sprintf("%s must be one of %s", name, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at least %s characters", name, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s", name, fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at most %s characters", name, fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s", name, fe.Param())
	case "gte", "lte":
		return fmt.Sprintf("%s is out of range", name)
	case "email", "url":
		return fmt.Sprintf("%s must be a valid %s", name, fe.Tag())
	}
	return fmt.Sprintf("%s failed %s validation", name, fe.Tag())
}

type pointReq struct {
	Lat float64 `json:"lat" binding:"gte=-90,lte=90"`
	Lng float64 `json:"lng" binding:"gte=-180,lte=180"`
}

// locationReq needs an address or coordinates.
type locationReq struct {
	Address     string    `json:"address" binding:"required_without=Coordinates"`
	City        string    `json:"city"`
	State       string    `json:"state"`
	ZipCode     string    `json:"zip_code"`
	Coordinates *pointReq `json:"coordinates" binding:"required_without=Address"`
}

func (l locationReq) toLocation() types.Location {
	loc := types.Location{Address: l.Address, City: l.City, State: l.State, ZipCode: l.ZipCode}
	if l.Coordinates != nil {
		loc.Coordinates = &types.Point{Lat: l.Coordinates.Lat, Lng: l.Coordinates.Lng}
	}
	return loc
}

func (l *locationReq) toLocationPtr() *types.Location {
	if l == nil {
		return nil
	}
	loc := l.toLocation()
	return &loc
}

type moneyReq struct {
	Amount   int64  `json:"amount" binding:"min=0"`
	Currency string `json:"currency" binding:"omitempty,len=3"`
}

func (m *moneyReq) toMoney() *types.Money {
	if m == nil {
		return nil
	}
	return &types.Money{Amount: m.Amount, Currency: m.Currency}
}
