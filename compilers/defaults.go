// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package compilers

// defaultSpecs returns the shipped compiler specifications. User
// configuration from .cbi/config is additive over these.
func defaultSpecs() map[string]*Spec {
	gnuRules := []Rule{
		{Flags: []string{"-D"}, Action: Append, Dest: "defines"},
		{Flags: []string{"-U"}, Action: Append, Dest: "undefines"},
		{Flags: []string{"-I", "--include-directory", "-isystem", "-iquote", "-idirafter"}, Action: Append, Dest: "include_paths"},
		{Flags: []string{"-include", "--include"}, Action: Append, Dest: "include_files"},
		{Flags: []string{"-fopenmp", "-fopenmp=libomp", "-fopenmp=libgomp", "-qopenmp", "-mp"}, Action: AppendConst, Dest: "modes", Const: "openmp"},
		{Flags: []string{"-ffixed-form", "-fixed"}, Action: StoreTrue, Dest: "fixed_form"},
		{Flags: []string{"-ffree-form", "-free"}, Action: StoreTrue, Dest: "free_form"},
	}
	gnu := &Spec{
		Parser: gnuRules,
		Modes: []Mode{
			{Name: "openmp", Defines: []string{"_OPENMP=201511"}},
		},
	}

	clang := &Spec{
		Parser: gnuRules,
		Modes: []Mode{
			{Name: "openmp", Defines: []string{"_OPENMP=201811"}},
		},
	}

	icx := &Spec{
		Parser: append([]Rule{
			{Flags: []string{"-fsycl"}, Action: AppendConst, Dest: "modes", Const: "sycl"},
			{Flags: []string{"-fsycl-targets"}, Action: StoreSplit, Dest: "passes_requested", Sep: ",", Format: "sycl-$value"},
			{Flags: []string{"-fiopenmp", "-qopenmp"}, Action: AppendConst, Dest: "modes", Const: "openmp"},
		}, gnuRules...),
		Modes: []Mode{
			{Name: "openmp", Defines: []string{"_OPENMP=201811"}},
			{Name: "sycl", Defines: []string{"SYCL_LANGUAGE_VERSION=202001"}},
		},
		Passes: []Pass{
			{Name: "sycl-spir64", Modes: []string{"sycl"}, Defines: []string{"__SYCL_DEVICE_ONLY__=1", "__SPIR__=1"}},
		},
	}

	nvcc := &Spec{
		Parser: append([]Rule{
			{Flags: []string{"-Xcompiler"}, Action: StoreSplit, Dest: "ignored", Sep: ","},
		}, gnuRules...),
		Modes: []Mode{
			{Name: "openmp", Defines: []string{"_OPENMP=201511"}},
		},
		Passes: []Pass{
			{Name: "cuda-device", Modes: []string{"cuda"}, Defines: []string{"__CUDA_ARCH__=520"}},
		},
	}

	gfortran := &Spec{
		Parser: append([]Rule{
			{Flags: []string{"-cpp"}, Action: StoreTrue, Dest: "cpp"},
		}, gnuRules...),
		Modes: []Mode{
			{Name: "openmp", Defines: []string{"_OPENMP=201511"}},
		},
	}

	return map[string]*Spec{
		"gnu":      gnu,
		"gcc":      {AliasOf: "gnu"},
		"g++":      {AliasOf: "gnu"},
		"cc":       {AliasOf: "gnu"},
		"c++":      {AliasOf: "gnu"},
		"clang":    clang,
		"clang++":  {AliasOf: "clang"},
		"clang-cl": {AliasOf: "clang"},
		"icx":      icx,
		"icpx":     {AliasOf: "icx"},
		"ifx":      {AliasOf: "icx"},
		"dpcpp":    {AliasOf: "icx"},
		"nvcc":     nvcc,
		"gfortran": gfortran,
		"flang":    {AliasOf: "gfortran"},
	}
}
