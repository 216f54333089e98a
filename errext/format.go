package errext

import "errors"

// Format renders err for the process log. The message is the stack trace
// of an [Exception] when there is one, err.Error() otherwise. Hints and
// exit codes found in the chain are returned as log fields.
func Format(err error) (string, map[string]interface{}) {
	if err == nil {
		return "", nil
	}

	msg := err.Error()
	if xerr := Exception(nil); errors.As(err, &xerr) {
		msg = xerr.StackTrace()
	}

	fields := map[string]interface{}{}
	if herr := HasHint(nil); errors.As(err, &herr) {
		fields["hint"] = herr.Hint()
	}
	if ecerr := HasExitCode(nil); errors.As(err, &ecerr) {
		fields["exit_code"] = int(ecerr.ExitCode())
	}
	return msg, fields
}
