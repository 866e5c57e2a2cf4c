/*
 * Copyright (c) 2022 AlertAvert.com.  All rights reserved.
 *
 * Licensed under the Apache License, Version 2.0
 * http://www.apache.org/licenses/LICENSE-2.0
 *
 * Author: Marco Massenzio (marco@alertavert.com)
 */

package pubsub

import log "github.com/massenz/slf4go/logging"

// Logger exposes the publisher's logger to the tests.
func (s *SqsPublisher) Logger() *log.Log {
	return s.logger
}
