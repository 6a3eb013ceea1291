package processor

import (
	"fmt"
	"strings"

	goeval "github.com/edisonguo/govaluate"
)

const maxClassValue = 256

// ParseClassFilter compiles a layer class filter expression.
// The only variable the expression may reference is 'class',
// the integer land-cover class value of a pixel.
func ParseClassFilter(filter string) (*goeval.EvaluableExpression, error) {
	if len(strings.TrimSpace(filter)) == 0 {
		return nil, nil
	}

	expr, err := goeval.NewEvaluableExpression(filter)
	if err != nil {
		return nil, err
	}

	for _, token := range expr.Tokens() {
		if token.Kind == goeval.VARIABLE {
			varName, ok := token.Value.(string)
			if !ok {
				return nil, fmt.Errorf("variable token '%v' failed to cast string", token.Value)
			}
			if varName != "class" {
				return nil, fmt.Errorf("variable %v is not supported. The only valid variable is 'class'", varName)
			}
		}
	}
	return expr, nil
}

// classKeepTable evaluates the filter once per possible class
// value rather than once per pixel.
func classKeepTable(expr *goeval.EvaluableExpression) ([]bool, error) {
	keep := make([]bool, maxClassValue)
	params := make(map[string]interface{}, 1)
	for class := 0; class < maxClassValue; class++ {
		params["class"] = float64(class)
		result, err := expr.Evaluate(params)
		if err != nil {
			return nil, err
		}
		val, ok := result.(bool)
		if !ok {
			return nil, fmt.Errorf("class filter must evaluate to a boolean, got %v", result)
		}
		keep[class] = val
	}
	return keep, nil
}

// ApplyClassFilter masks out every pixel whose class value
// fails the filter expression by writing the nodata value.
// Only Byte rasters carry class labels.
func ApplyClassFilter(raster *FlexRaster, filter string) error {
	expr, err := ParseClassFilter(filter)
	if err != nil {
		return err
	}
	if expr == nil {
		return nil
	}

	if raster.Type != "Byte" {
		return fmt.Errorf("class filters only apply to Byte rasters, got %s", raster.Type)
	}

	keep, err := classKeepTable(expr)
	if err != nil {
		return err
	}

	nodata := uint8(raster.NoData)
	for i, val := range raster.Data {
		if val != nodata && !keep[val] {
			raster.Data[i] = nodata
		}
	}
	return nil
}
