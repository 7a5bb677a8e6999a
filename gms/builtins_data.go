package gms

func registerDataBuiltins(g *Game) {
	// ds_map
	g.Register("ds_map_create", func(g *Game, self, other InstanceID, args []Value) (Value, error) {
		return Real(float64(g.ds.createMap())), nil
	})

	g.Register("ds_map_destroy", func(g *Game, self, other InstanceID, args []Value) (Value, error) {
		h, err := argInt(args, 0)
		if err != nil {
			return Undefined, err
		}
		g.ds.destroyMap(h)
		return Real(0), nil
	})

	g.Register("ds_map_add", func(g *Game, self, other InstanceID, args []Value) (Value, error) {
		h, err := argInt(args, 0)
		if err != nil {
			return Undefined, err
		}
		m := g.ds.mapAt(h)
		if m == nil {
			return Bool(false), nil
		}
		key, err := dsKey(arg(args, 1))
		if err != nil {
			return Undefined, err
		}
		if _, exists := m[key]; exists {
			return Bool(false), nil
		}
		m[key] = arg(args, 2)
		return Bool(true), nil
	})

	g.Register("ds_map_replace", func(g *Game, self, other InstanceID, args []Value) (Value, error) {
		h, err := argInt(args, 0)
		if err != nil {
			return Undefined, err
		}
		m := g.ds.mapAt(h)
		if m == nil {
			return Bool(false), nil
		}
		key, err := dsKey(arg(args, 1))
		if err != nil {
			return Undefined, err
		}
		m[key] = arg(args, 2)
		return Bool(true), nil
	})

	g.Register("ds_map_find_value", func(g *Game, self, other InstanceID, args []Value) (Value, error) {
		h, err := argInt(args, 0)
		if err != nil {
			return Undefined, err
		}
		m := g.ds.mapAt(h)
		if m == nil {
			return Undefined, nil
		}
		key, err := dsKey(arg(args, 1))
		if err != nil {
			return Undefined, err
		}
		return m[key], nil
	})

	g.Register("ds_map_exists", func(g *Game, self, other InstanceID, args []Value) (Value, error) {
		h, err := argInt(args, 0)
		if err != nil {
			return Undefined, err
		}
		m := g.ds.mapAt(h)
		if m == nil {
			return Bool(false), nil
		}
		key, err := dsKey(arg(args, 1))
		if err != nil {
			return Undefined, err
		}
		_, exists := m[key]
		return Bool(exists), nil
	})

	g.Register("ds_map_delete", func(g *Game, self, other InstanceID, args []Value) (Value, error) {
		h, err := argInt(args, 0)
		if err != nil {
			return Undefined, err
		}
		m := g.ds.mapAt(h)
		if m == nil {
			return Real(0), nil
		}
		key, err := dsKey(arg(args, 1))
		if err != nil {
			return Undefined, err
		}
		delete(m, key)
		return Real(0), nil
	})

	g.Register("ds_map_size", func(g *Game, self, other InstanceID, args []Value) (Value, error) {
		h, err := argInt(args, 0)
		if err != nil {
			return Undefined, err
		}
		m := g.ds.mapAt(h)
		if m == nil {
			return Real(0), nil
		}
		return Real(float64(len(m))), nil
	})

	g.Register("ds_map_clear", func(g *Game, self, other InstanceID, args []Value) (Value, error) {
		h, err := argInt(args, 0)
		if err != nil {
			return Undefined, err
		}
		m := g.ds.mapAt(h)
		for k := range m {
			delete(m, k)
		}
		return Real(0), nil
	})

	// ds_list
	g.Register("ds_list_create", func(g *Game, self, other InstanceID, args []Value) (Value, error) {
		return Real(float64(g.ds.createList())), nil
	})

	g.Register("ds_list_destroy", func(g *Game, self, other InstanceID, args []Value) (Value, error) {
		h, err := argInt(args, 0)
		if err != nil {
			return Undefined, err
		}
		g.ds.destroyList(h)
		return Real(0), nil
	})

	g.Register("ds_list_add", func(g *Game, self, other InstanceID, args []Value) (Value, error) {
		h, err := argInt(args, 0)
		if err != nil {
			return Undefined, err
		}
		if _, ok := g.ds.listAt(h); !ok {
			return Real(0), nil
		}
		g.ds.lists[h] = append(g.ds.lists[h], args[1:]...)
		return Real(0), nil
	})

	g.Register("ds_list_find_value", func(g *Game, self, other InstanceID, args []Value) (Value, error) {
		h, err := argInt(args, 0)
		if err != nil {
			return Undefined, err
		}
		i, err := argInt(args, 1)
		if err != nil {
			return Undefined, err
		}
		l, ok := g.ds.listAt(h)
		if !ok || i < 0 || i >= len(l) {
			return Undefined, nil
		}
		return l[i], nil
	})

	g.Register("ds_list_find_index", func(g *Game, self, other InstanceID, args []Value) (Value, error) {
		h, err := argInt(args, 0)
		if err != nil {
			return Undefined, err
		}
		l, ok := g.ds.listAt(h)
		if !ok {
			return Real(-1), nil
		}
		want := arg(args, 1)
		for i, v := range l {
			if v.Equals(want) {
				return Real(float64(i)), nil
			}
		}
		return Real(-1), nil
	})

	g.Register("ds_list_delete", func(g *Game, self, other InstanceID, args []Value) (Value, error) {
		h, err := argInt(args, 0)
		if err != nil {
			return Undefined, err
		}
		i, err := argInt(args, 1)
		if err != nil {
			return Undefined, err
		}
		l, ok := g.ds.listAt(h)
		if !ok || i < 0 || i >= len(l) {
			return Real(0), nil
		}
		g.ds.lists[h] = append(l[:i], l[i+1:]...)
		return Real(0), nil
	})

	g.Register("ds_list_size", func(g *Game, self, other InstanceID, args []Value) (Value, error) {
		h, err := argInt(args, 0)
		if err != nil {
			return Undefined, err
		}
		l, ok := g.ds.listAt(h)
		if !ok {
			return Real(0), nil
		}
		return Real(float64(len(l))), nil
	})

	g.Register("ds_list_clear", func(g *Game, self, other InstanceID, args []Value) (Value, error) {
		h, err := argInt(args, 0)
		if err != nil {
			return Undefined, err
		}
		if _, ok := g.ds.listAt(h); ok {
			g.ds.lists[h] = g.ds.lists[h][:0]
		}
		return Real(0), nil
	})
}
