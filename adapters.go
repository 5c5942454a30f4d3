package respserver

// serverLogger implements server.Logger and lua.Logger on top of Logger
type serverLogger struct {
	logger Logger
}

func (sl *serverLogger) Debug(msg string, fields ...interface{}) {
	sl.logger.Debug(msg, convertFields(fields...)...)
}

func (sl *serverLogger) Info(msg string, fields ...interface{}) {
	sl.logger.Info(msg, convertFields(fields...)...)
}

func (sl *serverLogger) Error(msg string, fields ...interface{}) {
	sl.logger.Error(msg, convertFields(fields...)...)
}

// convertFields turns alternating key/value pairs into Fields. A trailing
// key without a value is dropped.
func convertFields(fields ...interface{}) []Field {
	result := make([]Field, 0, len(fields)/2)
	for i := 0; i < len(fields)-1; i += 2 {
		if key, ok := fields[i].(string); ok {
			result = append(result, Field{
				Key:   key,
				Value: fields[i+1],
			})
		}
	}
	return result
}
