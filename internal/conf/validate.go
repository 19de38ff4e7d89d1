package conf

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/evalgrid/postit/internal/errors"
)

// settingsValidate checks the validate struct tags on Settings.
var settingsValidate = validator.New()

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("Validation errors: %v", ve.Errors)
}

// ErrorCategory marks configuration validation failures.
func (ve ValidationError) ErrorCategory() errors.ErrorCategory {
	return errors.CategoryConfiguration
}

// ValidateSettings validates the entire Settings struct
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	if err := settingsValidate.Struct(settings); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			for _, fe := range fieldErrs {
				ve.Errors = append(ve.Errors, describeFieldError(fe))
			}
		} else {
			ve.Errors = append(ve.Errors, err.Error())
		}
	}

	if err := validateWorkflowSettings(&settings.Workflow); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateStoreSettings(&settings.Store); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

// describeFieldError renders one struct-tag failure as a config key message.
func describeFieldError(fe validator.FieldError) string {
	key := strings.ToLower(strings.TrimPrefix(fe.Namespace(), "Settings."))
	if fe.Param() != "" {
		return fmt.Sprintf("%s: failed %s=%s (got %v)", key, fe.Tag(), fe.Param(), fe.Value())
	}
	return fmt.Sprintf("%s: failed %s (got %v)", key, fe.Tag(), fe.Value())
}

// validateWorkflowSettings checks timing relationships between workflow settings
func validateWorkflowSettings(settings *WorkflowSettings) error {
	const maxDelay = 10 * time.Second
	var errs []string

	if settings.AutoAdvanceDelay > maxDelay {
		errs = append(errs, fmt.Sprintf("workflow.autoadvancedelay must not exceed %s", maxDelay))
	}
	if settings.ManualGrace > maxDelay {
		errs = append(errs, fmt.Sprintf("workflow.manualgrace must not exceed %s", maxDelay))
	}

	if len(errs) > 0 {
		return fmt.Errorf("workflow settings errors: %v", errs)
	}
	return nil
}

// validateStoreSettings checks driver-specific requirements
func validateStoreSettings(settings *StoreSettings) error {
	var errs []string

	if settings.Driver == DriverMySQL {
		if settings.MySQL.Database == "" {
			errs = append(errs, "store.mysql.database is required for the mysql driver")
		}
		if settings.MySQL.MaxIdleConns > settings.MySQL.MaxOpenConns && settings.MySQL.MaxOpenConns > 0 {
			errs = append(errs, "store.mysql.maxidleconns must not exceed maxopenconns")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("store settings errors: %v", errs)
	}
	return nil
}
